package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HTTPRecorder audits mutating traffic on the back-office routes. It
// runs after the handler so the recorded entry carries the real status.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig shapes the entry for one route group: which catalog the
// route mutates (compras, proveedores, impuestos) and which URL param
// identifies the row.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
}

// Middleware records an audit entry for every request that passes
// through it. The API carries no authentication, so every HTTP entry
// is attributed to the anonymous actor.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			ww := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(ww, req)

			entry := auditInput{
				actor:        Actor{Kind: ActorKindAnonymous},
				action:       cfg.Action,
				resourceType: cfg.ResourceType,
				status:       ww.Status(),
			}
			if cfg.ResourceIDParam != "" {
				entry.resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if cfg.MetadataFunc != nil {
				if payload := cfg.MetadataFunc(req, entry.status); payload != nil {
					if data, err := json.Marshal(payload); err == nil {
						entry.metadata = data
					}
				}
			}

			err := r.Service.Record(req.Context(), entry.actor, entry.action, entry.resourceType, entry.resourceID, req, entry.status, entry.metadata)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

type auditInput struct {
	actor        Actor
	action       string
	resourceType string
	resourceID   string
	status       int
	metadata     []byte
}

// statusWriter captures the status code written by the wrapped handler.
// A handler that writes a body without an explicit WriteHeader implies
// 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

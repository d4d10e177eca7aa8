package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents external callers. The API carries no
	// authentication layer, so this is the usual kind for HTTP traffic.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind ActorKind
}

// Entry is one persisted audit log row.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	ActorKind    string          `json:"actorKind"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   *string         `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        *string         `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"userAgent,omitempty"`
	RequestID    *string         `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, entry Entry) (uuid.UUID, error)
	ListAuditLogs(ctx context.Context, limit, offset int) ([]Entry, error)
	CountAuditLogs(ctx context.Context) (int64, error)
}

// Service persists audit logs for critical application flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		if rand.Float64() > s.SamplingRate {
			return nil
		}
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	method := req.Method
	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}

	finalStatus := status
	if finalStatus == 0 {
		finalStatus = http.StatusOK
	}

	entry := Entry{
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		Action:       buildAction(action, method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   pointerOf(resourceID),
		Method:       method,
		Path:         req.URL.Path,
		Route:        pointerOf(route),
		Status:       finalStatus,
		IP:           pointerOf(common.ClientIP(req)),
		UserAgent:    pointerOf(req.Header.Get("User-Agent")),
		RequestID:    pointerOf(req.Header.Get("X-Request-ID")),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	}
	_, err := s.Store.InsertAuditLog(ctx, entry)
	return err
}

func buildAction(action, method, route string) string {
	trimmed := strings.TrimSpace(action)
	if trimmed != "" {
		return trimmed
	}
	base := strings.ToUpper(strings.TrimSpace(method))
	target := route
	if target == "" {
		target = "/"
	}
	return base + " " + target
}

func buildResource(resourceType, route string) string {
	trimmed := strings.TrimSpace(resourceType)
	if trimmed != "" {
		return trimmed
	}
	route = strings.Trim(route, " ")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	if kind == ActorKindSystem {
		return kind
	}
	return ActorKindAnonymous
}

func pointerOf(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toJSONB(metadata []byte, query string) []byte {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	payload := map[string]string{"query": query}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

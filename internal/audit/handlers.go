package audit

import (
	"net/http"

	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Store Store
}

// List returns a paginated list of audit logs for administrators.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50, 200)

	entries, err := h.Store.ListAuditLogs(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	total, err := h.Store.CountAuditLogs(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

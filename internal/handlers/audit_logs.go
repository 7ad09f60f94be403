package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/services"
)

type AuditLogHandler struct {
	audit *services.AuditRecorder
}

func NewAuditLogHandler(audit *services.AuditRecorder) *AuditLogHandler {
	return &AuditLogHandler{audit: audit}
}

func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	q := r.URL.Query()
	rows, err := h.audit.List(r.Context(), services.AuditFilter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entity_id"),
		UserID:   q.Get("user_id"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
)

type LeadHandler struct {
	svc *services.LeadService
}

func NewLeadHandler(svc *services.LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	q := r.URL.Query()
	status := models.LeadStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, r, invalid("unknown lead status"))
		return
	}
	leads, err := h.svc.List(r.Context(), services.LeadFilter{
		Search:     q.Get("search"),
		Status:     status,
		AssignedTo: q.Get("assigned_to"),
		Skip:       skip,
		Limit:      limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var total int64
	var value float64
	for _, s := range stats {
		total += s.Count
		value += s.TotalValue
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total":       total,
		"total_value": value,
		"by_status":   stats,
	})
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.LeadCreate
	if !decode(w, r, &in) {
		return
	}
	l, err := h.svc.Create(r.Context(), actorID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, l)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.LeadUpdate
	if !decode(w, r, &in) {
		return
	}
	l, err := h.svc.Update(r.Context(), r.PathValue("id"), actorID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), actorID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Lead deleted")
}

func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Convert(r.Context(), r.PathValue("id"), actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":    "Lead converted successfully",
		"account_id": res.AccountID,
		"contact_id": res.ContactID,
		"deal_id":    res.DealID,
	})
}

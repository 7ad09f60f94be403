package handlers

import (
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"gorm.io/gorm"
)

type DealHandler struct {
	db      *gorm.DB
	effects *services.Effects
}

func NewDealHandler(db *gorm.DB, effects *services.Effects) *DealHandler {
	return &DealHandler{db: db, effects: effects}
}

func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	q := h.db.WithContext(r.Context()).Model(&models.Deal{})
	if s := r.URL.Query().Get("stage"); s != "" {
		q = q.Where("stage = ?", s)
	}
	if a := r.URL.Query().Get("account_id"); a != "" {
		q = q.Where("account_id = ?", a)
	}
	if o := r.URL.Query().Get("owner_id"); o != "" {
		q = q.Where("owner_id = ?", o)
	}
	var deals []models.Deal
	if err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&deals).Error; err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deals)
}

func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := findByID[models.Deal](r.Context(), h.db, r.PathValue("id"), "deal")
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DealHandler) checkRefs(r *http.Request, accountID, contactID *string) error {
	ctx := r.Context()
	if accountID != nil {
		ok, err := exists(ctx, h.db, &models.Account{}, *accountID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("account does not exist")
		}
	}
	if contactID != nil {
		ok, err := exists(ctx, h.db, &models.Contact{}, *contactID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("contact does not exist")
		}
	}
	return nil
}

func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.DealCreate
	if !decode(w, r, &in) {
		return
	}
	if err := h.checkRefs(r, &in.AccountID, in.ContactID); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorID(r)
	d := models.Deal{
		Name:        in.Name,
		Amount:      in.Amount,
		Stage:       models.StageQualification,
		ClosingDate: in.ClosingDate,
		Probability: models.DefaultProbability,
		AccountID:   in.AccountID,
		ContactID:   in.ContactID,
		OwnerID:     actor,
	}
	if in.Stage != nil {
		d.Stage = *in.Stage
	}
	if in.Probability != nil {
		d.Probability = *in.Probability
	}
	if err := h.db.WithContext(r.Context()).Create(&d).Error; err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Created(r.Context(), models.EntityDeal, d.ID, actor, &d)
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := findByID[models.Deal](ctx, h.db, r.PathValue("id"), "deal")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in models.DealUpdate
	if !decode(w, r, &in) {
		return
	}
	if err := h.checkRefs(r, nil, in.ContactID); err != nil {
		writeError(w, r, err)
		return
	}
	fields := in.Fields()
	if len(fields) == 0 {
		httpx.JSON(w, http.StatusOK, d)
		return
	}
	if err := h.db.WithContext(ctx).Model(d).Updates(fields).Error; err != nil {
		writeError(w, r, err)
		return
	}
	if d, err = findByID[models.Deal](ctx, h.db, d.ID, "deal"); err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Updated(ctx, models.EntityDeal, d.ID, actorID(r), fields, d)
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res := h.db.WithContext(r.Context()).Delete(&models.Deal{}, "id = ?", id)
	if res.Error != nil {
		writeError(w, r, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, r, notFound("deal"))
		return
	}
	h.effects.Deleted(r.Context(), models.EntityDeal, id, actorID(r))
	httpx.Message(w, http.StatusOK, "Deal deleted")
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"gorm.io/gorm"
)

type ContactHandler struct {
	db      *gorm.DB
	effects *services.Effects
}

func NewContactHandler(db *gorm.DB, effects *services.Effects) *ContactHandler {
	return &ContactHandler{db: db, effects: effects}
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	q := h.db.WithContext(r.Context()).Model(&models.Contact{})
	if a := r.URL.Query().Get("account_id"); a != "" {
		q = q.Where("account_id = ?", a)
	}
	if term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search"))); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	var contacts []models.Contact
	if err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&contacts).Error; err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, contacts)
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := findByID[models.Contact](r.Context(), h.db, r.PathValue("id"), "contact")
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ContactHandler) checkAccount(r *http.Request, id *string) error {
	if id == nil {
		return nil
	}
	ok, err := exists(r.Context(), h.db, &models.Account{}, *id)
	if err != nil {
		return err
	}
	if !ok {
		return invalid("account does not exist")
	}
	return nil
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ContactCreate
	if !decode(w, r, &in) {
		return
	}
	if err := h.checkAccount(r, in.AccountID); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorID(r)
	c := models.Contact{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Title:     in.Title,
		AccountID: in.AccountID,
		OwnerID:   actor,
	}
	if err := h.db.WithContext(r.Context()).Create(&c).Error; err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Created(r.Context(), models.EntityContact, c.ID, actor, &c)
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := findByID[models.Contact](ctx, h.db, r.PathValue("id"), "contact")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in models.ContactUpdate
	if !decode(w, r, &in) {
		return
	}
	if err := h.checkAccount(r, in.AccountID); err != nil {
		writeError(w, r, err)
		return
	}
	fields := in.Fields()
	if len(fields) == 0 {
		httpx.JSON(w, http.StatusOK, c)
		return
	}
	if err := h.db.WithContext(ctx).Model(c).Updates(fields).Error; err != nil {
		writeError(w, r, err)
		return
	}
	if c, err = findByID[models.Contact](ctx, h.db, c.ID, "contact"); err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Updated(ctx, models.EntityContact, c.ID, actorID(r), fields, c)
	httpx.JSON(w, http.StatusOK, c)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res := h.db.WithContext(r.Context()).Delete(&models.Contact{}, "id = ?", id)
	if res.Error != nil {
		writeError(w, r, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, r, notFound("contact"))
		return
	}
	h.effects.Deleted(r.Context(), models.EntityContact, id, actorID(r))
	httpx.Message(w, http.StatusOK, "Contact deleted")
}

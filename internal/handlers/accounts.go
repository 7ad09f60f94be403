package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/services"
	"gorm.io/gorm"
)

type AccountHandler struct {
	db      *gorm.DB
	effects *services.Effects
	notify  *services.NotificationService
}

func NewAccountHandler(db *gorm.DB, effects *services.Effects, notify *services.NotificationService) *AccountHandler {
	return &AccountHandler{db: db, effects: effects, notify: notify}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := page(r)
	q := h.db.WithContext(r.Context()).Model(&models.Account{})
	if term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search"))); term != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+term+"%")
	}
	if a := r.URL.Query().Get("assigned_to"); a != "" {
		q = q.Where("assigned_to_id = ?", a)
	}
	var accounts []models.Account
	if err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&accounts).Error; err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := findByID[models.Account](r.Context(), h.db, r.PathValue("id"), "account")
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.AccountCreate
	if !decode(w, r, &in) {
		return
	}
	ctx := r.Context()
	actor := actorID(r)
	if in.AssignedToID != nil {
		ok, err := exists(ctx, h.db, &models.User{}, *in.AssignedToID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, invalid("assigned user does not exist"))
			return
		}
	}
	acc := models.Account{
		Name:           in.Name,
		Industry:       in.Industry,
		Website:        in.Website,
		Phone:          in.Phone,
		BillingAddress: in.BillingAddress,
		CreatedByID:    actor,
		AssignedToID:   in.AssignedToID,
	}
	if err := h.db.WithContext(ctx).Create(&acc).Error; err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Created(ctx, models.EntityAccount, acc.ID, actor, &acc)
	if acc.AssignedToID != nil && *acc.AssignedToID != actor {
		h.notify.NotifyQuietly(ctx, services.NotifyInput{
			UserID:   *acc.AssignedToID,
			Type:     models.NotifyAccountAssigned,
			Title:    "Account assigned",
			Message:  fmt.Sprintf("You have been assigned the account %s.", acc.Name),
			Metadata: map[string]any{"account_id": acc.ID},
		})
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc, err := findByID[models.Account](ctx, h.db, r.PathValue("id"), "account")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in models.AccountUpdate
	if !decode(w, r, &in) {
		return
	}
	fields := in.Fields()
	if len(fields) == 0 {
		httpx.JSON(w, http.StatusOK, acc)
		return
	}
	if err := h.db.WithContext(ctx).Model(acc).Updates(fields).Error; err != nil {
		writeError(w, r, err)
		return
	}
	if acc, err = findByID[models.Account](ctx, h.db, acc.ID, "account"); err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Updated(ctx, models.EntityAccount, acc.ID, actorID(r), fields, acc)
	httpx.JSON(w, http.StatusOK, acc)
}

// Delete removes the account and its contacts together.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.Contact{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Account{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("account")
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.effects.Deleted(ctx, models.EntityAccount, id, actorID(r))
	httpx.Message(w, http.StatusOK, "Account deleted")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-crm/internal/events"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const leadEntity = models.EntityLead

// ConversionMetrics counts conversion outcomes. *metrics.Metrics satisfies it.
type ConversionMetrics interface {
	Conversion(result string)
}

// ConversionResult identifies the records a conversion produced.
type ConversionResult struct {
	LeadID    string `json:"lead_id"`
	AccountID string `json:"account_id"`
	ContactID string `json:"contact_id"`
	DealID    string `json:"deal_id"`
}

// LeadFilter narrows List. Search matches name, company and email.
type LeadFilter struct {
	Search     string
	Status     models.LeadStatus
	AssignedTo string
	Skip       int
	Limit      int
}

// LeadService owns leads, including the conversion workflow.
type LeadService struct {
	db      *gorm.DB
	Effects *Effects
	Notify  *NotificationService
	Push    Pusher
	Events  events.Publisher
	Metrics ConversionMetrics
	Log     logrus.FieldLogger

	now func() time.Time
}

func NewLeadService(db *gorm.DB) *LeadService {
	return &LeadService{db: db, Events: events.Nop{}, Log: logrus.StandardLogger(), now: time.Now}
}

func (s *LeadService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *LeadService) Get(ctx context.Context, id string) (*models.Lead, error) {
	var l models.Lead
	if err := s.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lead", ErrNotFound)
		}
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return &l, nil
}

func (s *LeadService) List(ctx context.Context, f LeadFilter) ([]models.Lead, error) {
	q := s.db.WithContext(ctx).Model(&models.Lead{})
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssignedTo != "" {
		q = q.Where("assigned_to_id = ?", f.AssignedTo)
	}
	var leads []models.Lead
	if err := q.Order("created_at DESC").Offset(f.Skip).Limit(clampLimit(f.Limit)).Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// Stats aggregates lead count and value per status.
func (s *LeadService) Stats(ctx context.Context) ([]models.LeadStat, error) {
	var out []models.LeadStat
	err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(value), 0) AS total_value").
		Group("status").
		Order("status").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("lead stats: %w", err)
	}
	return out, nil
}

func (s *LeadService) Create(ctx context.Context, actor string, in models.LeadCreate) (*models.Lead, error) {
	if in.AssignedToID != nil {
		if err := s.requireUser(ctx, *in.AssignedToID); err != nil {
			return nil, err
		}
	}
	l := &models.Lead{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Company:      in.Company,
		Email:        in.Email,
		Title:        in.Title,
		Source:       in.Source,
		Status:       models.LeadNew,
		Value:        in.Value,
		CreatedByID:  actor,
		AssignedToID: in.AssignedToID,
	}
	if in.Status != nil {
		if *in.Status == models.LeadConverted {
			return nil, fmt.Errorf("%w: leads are converted through the conversion endpoint", ErrInvalidInput)
		}
		l.Status = *in.Status
	}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.Effects.Created(ctx, leadEntity, l.ID, actor, l)
	if l.AssignedToID != nil && *l.AssignedToID != actor {
		s.Notify.NotifyQuietly(ctx, NotifyInput{
			UserID:   *l.AssignedToID,
			Type:     models.NotifyLeadAssigned,
			Title:    "Lead assigned",
			Message:  fmt.Sprintf("You have been assigned the lead %s %s (%s).", l.FirstName, l.LastName, l.Company),
			Metadata: map[string]any{"lead_id": l.ID},
		})
	}
	return l, nil
}

// Update applies in to lead id. A converted lead keeps its status, and no
// lead reaches CONVERTED through Update.
func (s *LeadService) Update(ctx context.Context, id, actor string, in models.LeadUpdate) (*models.Lead, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		switch {
		case l.IsConverted() && *in.Status != models.LeadConverted:
			return nil, fmt.Errorf("%w: status of a converted lead cannot change", ErrAlreadyConverted)
		case !l.IsConverted() && *in.Status == models.LeadConverted:
			return nil, fmt.Errorf("%w: leads are converted through the conversion endpoint", ErrInvalidInput)
		}
	}
	if in.AssignedToID != nil {
		if err := s.requireUser(ctx, *in.AssignedToID); err != nil {
			return nil, err
		}
	}
	fields := in.Fields()
	if len(fields) == 0 {
		return l, nil
	}
	prevStatus, prevAssignee := l.Status, l.AssignedToID
	if err := s.db.WithContext(ctx).Model(l).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	if l, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	s.Effects.Updated(ctx, leadEntity, l.ID, actor, fields, l)

	if l.Status != prevStatus {
		if owner := l.GetOwnerID(); owner != actor {
			s.Notify.NotifyQuietly(ctx, NotifyInput{
				UserID:   owner,
				Type:     models.NotifyLeadUpdated,
				Title:    "Lead updated",
				Message:  fmt.Sprintf("Lead %s moved from %s to %s.", l.Company, prevStatus, l.Status),
				Metadata: map[string]any{"lead_id": l.ID, "from": prevStatus, "to": l.Status},
			})
		}
	}
	if a := l.AssignedToID; a != nil && *a != actor && (prevAssignee == nil || *prevAssignee != *a) {
		s.Notify.NotifyQuietly(ctx, NotifyInput{
			UserID:   *a,
			Type:     models.NotifyLeadAssigned,
			Title:    "Lead assigned",
			Message:  fmt.Sprintf("You have been assigned the lead %s %s (%s).", l.FirstName, l.LastName, l.Company),
			Metadata: map[string]any{"lead_id": l.ID},
		})
	}
	return l, nil
}

func (s *LeadService) Delete(ctx context.Context, id, actor string) error {
	res := s.db.WithContext(ctx).Delete(&models.Lead{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete lead: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: lead", ErrNotFound)
	}
	s.Effects.Deleted(ctx, leadEntity, id, actor)
	return nil
}

func (s *LeadService) requireUser(ctx context.Context, id string) error {
	ok, err := repository.NewUserRepo(s.db).Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup assignee: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: assigned user does not exist", ErrInvalidInput)
	}
	return nil
}

// Convert turns lead id into an Account, a Contact and a Deal owned by
// actor. The three inserts and the lead update commit together or not at
// all; a lead converts at most once.
func (s *LeadService) Convert(ctx context.Context, id, actor string) (*ConversionResult, error) {
	var (
		lead    models.Lead
		account models.Account
		contact models.Contact
		deal    models.Deal
	)
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lead, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lead", ErrNotFound)
			}
			return fmt.Errorf("find lead: %w", err)
		}
		if lead.IsConverted() {
			return ErrAlreadyConverted
		}

		account = models.Account{Name: lead.Company, CreatedByID: actor}
		if err := tx.Create(&account).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		email := lead.Email
		contact = models.Contact{
			FirstName: lead.FirstName,
			LastName:  lead.LastName,
			Email:     &email,
			Title:     lead.Title,
			AccountID: &account.ID,
			OwnerID:   actor,
		}
		if err := tx.Create(&contact).Error; err != nil {
			return fmt.Errorf("create contact: %w", err)
		}
		deal = models.Deal{
			Name:        fmt.Sprintf("%s - %s Deal", lead.Company, lead.LastName),
			Amount:      lead.Value,
			Stage:       models.StageQualification,
			Probability: models.DefaultProbability,
			AccountID:   account.ID,
			ContactID:   &contact.ID,
			OwnerID:     actor,
		}
		if err := tx.Create(&deal).Error; err != nil {
			return fmt.Errorf("create deal: %w", err)
		}

		res := tx.Model(&models.Lead{}).
			Where("id = ? AND status <> ?", lead.ID, models.LeadConverted).
			Updates(map[string]any{
				"status":               models.LeadConverted,
				"converted_at":         now,
				"converted_account_id": account.ID,
				"converted_contact_id": contact.ID,
				"converted_deal_id":    deal.ID,
			})
		if res.Error != nil {
			return fmt.Errorf("mark lead converted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyConverted
		}
		return nil
	})
	if err != nil {
		s.observe(err)
		return nil, err
	}
	s.observe(nil)

	result := &ConversionResult{LeadID: lead.ID, AccountID: account.ID, ContactID: contact.ID, DealID: deal.ID}
	s.afterConvert(ctx, &lead, actor, result)
	return result, nil
}

func (s *LeadService) observe(err error) {
	if s.Metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.Metrics.Conversion("ok")
	case errors.Is(err, ErrAlreadyConverted):
		s.Metrics.Conversion("already_converted")
	case errors.Is(err, ErrNotFound):
		s.Metrics.Conversion("not_found")
	default:
		s.Metrics.Conversion("error")
	}
}

// afterConvert runs the best-effort follow ups of a committed conversion.
func (s *LeadService) afterConvert(ctx context.Context, lead *models.Lead, actor string, r *ConversionResult) {
	if s.Effects != nil {
		audit := s.Effects.Audit
		audit.Log(ctx, Entry{Action: models.AuditCreate, Entity: models.EntityAccount, EntityID: r.AccountID, UserID: actor,
			Changes: map[string]any{"source_lead_id": lead.ID}})
		audit.Log(ctx, Entry{Action: models.AuditCreate, Entity: models.EntityContact, EntityID: r.ContactID, UserID: actor,
			Changes: map[string]any{"source_lead_id": lead.ID}})
		audit.Log(ctx, Entry{Action: models.AuditCreate, Entity: models.EntityDeal, EntityID: r.DealID, UserID: actor,
			Changes: map[string]any{"source_lead_id": lead.ID}})
		audit.Log(ctx, Entry{Action: models.AuditUpdate, Entity: leadEntity, EntityID: lead.ID, UserID: actor,
			Changes: map[string]any{"status": models.LeadConverted, "converted_account_id": r.AccountID}})
	}

	if owner := lead.GetOwnerID(); owner != actor {
		s.Notify.NotifyQuietly(ctx, NotifyInput{
			UserID:   owner,
			Type:     models.NotifyLeadConverted,
			Title:    "Lead converted",
			Message:  fmt.Sprintf("Lead %s %s from %s was converted.", lead.FirstName, lead.LastName, lead.Company),
			Metadata: map[string]any{"lead_id": lead.ID, "account_id": r.AccountID, "deal_id": r.DealID},
		})
	}
	if s.Push != nil {
		s.Push.Broadcast(realtime.Message{Type: realtime.TypeLeadConverted, Data: r}, "")
	}
	if s.Events != nil {
		if err := s.Events.Publish(ctx, events.LeadConverted, r); err != nil {
			s.Log.WithError(err).WithField("lead_id", lead.ID).Warn("lead: publish conversion failed")
		}
	}
}

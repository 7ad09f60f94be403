package models

import (
	"time"

	"gorm.io/gorm"
)

type ActivityType string

const (
	ActivityCall    ActivityType = "CALL"
	ActivityEmail   ActivityType = "EMAIL"
	ActivityMeeting ActivityType = "MEETING"
	ActivityNote    ActivityType = "NOTE"
	ActivityTask    ActivityType = "TASK"
)

// LinkKind names the record an Activity is attached to.
type LinkKind string

const (
	LinkNone    LinkKind = ""
	LinkAccount LinkKind = "account"
	LinkLead    LinkKind = "lead"
	LinkDeal    LinkKind = "deal"
)

// Link is the single optional target of an Activity.
type Link struct {
	Kind LinkKind
	ID   string
}

// Activity is a logged interaction. At most one of AccountID, LeadID and
// DealID is set; use LinkedTo to read it.
type Activity struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	Type        ActivityType `gorm:"size:20;not null" json:"type"`
	Subject     string       `gorm:"size:255;not null" json:"subject"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`
	UserID      string       `gorm:"size:36;not null;index" json:"user_id"`
	AccountID   *string      `gorm:"size:36;index" json:"account_id,omitempty"`
	LeadID      *string      `gorm:"size:36;index" json:"lead_id,omitempty"`
	DealID      *string      `gorm:"size:36;index" json:"deal_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// LinkedTo returns the attached record, or a LinkNone link.
func (a *Activity) LinkedTo() Link {
	switch {
	case a.AccountID != nil:
		return Link{Kind: LinkAccount, ID: *a.AccountID}
	case a.LeadID != nil:
		return Link{Kind: LinkLead, ID: *a.LeadID}
	case a.DealID != nil:
		return Link{Kind: LinkDeal, ID: *a.DealID}
	}
	return Link{}
}

// SetLink replaces any existing link with l.
func (a *Activity) SetLink(l Link) {
	a.AccountID, a.LeadID, a.DealID = nil, nil, nil
	id := l.ID
	switch l.Kind {
	case LinkAccount:
		a.AccountID = &id
	case LinkLead:
		a.LeadID = &id
	case LinkDeal:
		a.DealID = &id
	}
}

type ActivityCreate struct {
	Type        ActivityType `json:"type" validate:"required,oneof=CALL EMAIL MEETING NOTE TASK"`
	Subject     string       `json:"subject" validate:"required,max=255"`
	Description *string      `json:"description"`
	AccountID   *string      `json:"account_id" validate:"omitempty,uuid"`
	LeadID      *string      `json:"lead_id" validate:"omitempty,uuid"`
	DealID      *string      `json:"deal_id" validate:"omitempty,uuid"`
}

// Link resolves the request keys into a Link. ok is false when more than
// one key is set.
func (c ActivityCreate) Link() (l Link, ok bool) {
	n := 0
	if c.AccountID != nil {
		n++
		l = Link{Kind: LinkAccount, ID: *c.AccountID}
	}
	if c.LeadID != nil {
		n++
		l = Link{Kind: LinkLead, ID: *c.LeadID}
	}
	if c.DealID != nil {
		n++
		l = Link{Kind: LinkDeal, ID: *c.DealID}
	}
	return l, n <= 1
}

func (a *Activity) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

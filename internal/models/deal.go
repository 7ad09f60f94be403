package models

import "time"

type DealStage string

const (
	StageQualification DealStage = "QUALIFICATION"
	StageNeedsAnalysis DealStage = "NEEDS_ANALYSIS"
	StageProposal      DealStage = "PROPOSAL"
	StageNegotiation   DealStage = "NEGOTIATION"
	StageClosedWon     DealStage = "CLOSED_WON"
	StageClosedLost    DealStage = "CLOSED_LOST"
)

// DefaultProbability is the win probability of a new deal, in percent.
const DefaultProbability = 10

// Deal is a sales opportunity attached to an Account.
type Deal struct {
	Base
	Name        string     `gorm:"size:255;not null" json:"name"`
	Amount      float64    `gorm:"not null" json:"amount"`
	Stage       DealStage  `gorm:"size:30;not null;index" json:"stage"`
	ClosingDate *time.Time `json:"closing_date,omitempty"`
	Probability int        `gorm:"not null" json:"probability"`
	AccountID   string     `gorm:"size:36;not null;index" json:"account_id"`
	ContactID   *string    `gorm:"size:36" json:"contact_id,omitempty"`
	OwnerID     string     `gorm:"size:36;not null;index" json:"owner_id"`
}

func (d *Deal) GetOwnerID() string { return d.OwnerID }

type DealCreate struct {
	Name        string     `json:"name" validate:"required,max=255"`
	Amount      float64    `json:"amount" validate:"gte=0"`
	Stage       *DealStage `json:"stage" validate:"omitempty,oneof=QUALIFICATION NEEDS_ANALYSIS PROPOSAL NEGOTIATION CLOSED_WON CLOSED_LOST"`
	ClosingDate *time.Time `json:"closing_date"`
	Probability *int       `json:"probability" validate:"omitempty,gte=0,lte=100"`
	AccountID   string     `json:"account_id" validate:"required,uuid"`
	ContactID   *string    `json:"contact_id" validate:"omitempty,uuid"`
}

type DealUpdate struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Amount      *float64   `json:"amount" validate:"omitempty,gte=0"`
	Stage       *DealStage `json:"stage" validate:"omitempty,oneof=QUALIFICATION NEEDS_ANALYSIS PROPOSAL NEGOTIATION CLOSED_WON CLOSED_LOST"`
	ClosingDate *time.Time `json:"closing_date"`
	Probability *int       `json:"probability" validate:"omitempty,gte=0,lte=100"`
	ContactID   *string    `json:"contact_id" validate:"omitempty,uuid"`
}

func (u DealUpdate) Fields() map[string]any {
	m := map[string]any{}
	setIf(m, "name", u.Name)
	setIf(m, "amount", u.Amount)
	setIf(m, "stage", u.Stage)
	setIf(m, "closing_date", u.ClosingDate)
	setIf(m, "probability", u.Probability)
	setIf(m, "contact_id", u.ContactID)
	return m
}

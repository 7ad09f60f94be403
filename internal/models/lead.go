package models

import "time"

type LeadStatus string

const (
	LeadNew       LeadStatus = "NEW"
	LeadContacted LeadStatus = "CONTACTED"
	LeadQualified LeadStatus = "QUALIFIED"
	LeadLost      LeadStatus = "LOST"
	LeadConverted LeadStatus = "CONVERTED"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadLost, LeadConverted:
		return true
	}
	return false
}

// Lead is an unqualified prospect.
// Status CONVERTED is terminal and holds exactly when ConvertedAt is set.
type Lead struct {
	Base
	FirstName          string     `gorm:"size:100;not null" json:"first_name"`
	LastName           string     `gorm:"size:100;not null" json:"last_name"`
	Company            string     `gorm:"size:255;not null" json:"company"`
	Email              string     `gorm:"size:255;not null;index" json:"email"`
	Title              *string    `gorm:"size:100" json:"title,omitempty"`
	Source             *string    `gorm:"size:100" json:"source,omitempty"`
	Status             LeadStatus `gorm:"size:20;not null;index" json:"status"`
	Value              float64    `gorm:"not null" json:"value"`
	CreatedByID        string     `gorm:"size:36;not null;index" json:"created_by_id"`
	AssignedToID       *string    `gorm:"size:36;index" json:"assigned_to_id,omitempty"`
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`
	ConvertedAccountID *string    `gorm:"size:36" json:"converted_account_id,omitempty"`
	ConvertedContactID *string    `gorm:"size:36" json:"converted_contact_id,omitempty"`
	ConvertedDealID    *string    `gorm:"size:36" json:"converted_deal_id,omitempty"`
}

// GetOwnerID returns the assignee when set, else the creator.
func (l *Lead) GetOwnerID() string {
	if l.AssignedToID != nil && *l.AssignedToID != "" {
		return *l.AssignedToID
	}
	return l.CreatedByID
}

func (l *Lead) IsConverted() bool { return l.Status == LeadConverted }

// Status is absent from LeadCreate on purpose: conversion has its own
// workflow, and new leads start NEW unless a pre-conversion status is given.
type LeadCreate struct {
	FirstName    string      `json:"first_name" validate:"required,max=100"`
	LastName     string      `json:"last_name" validate:"required,max=100"`
	Company      string      `json:"company" validate:"required,max=255"`
	Email        string      `json:"email" validate:"required,email"`
	Title        *string     `json:"title" validate:"omitempty,max=100"`
	Source       *string     `json:"source" validate:"omitempty,max=100"`
	Value        float64     `json:"value" validate:"gte=0"`
	Status       *LeadStatus `json:"status" validate:"omitempty,oneof=NEW CONTACTED QUALIFIED LOST"`
	AssignedToID *string     `json:"assigned_to_id" validate:"omitempty,uuid"`
}

type LeadUpdate struct {
	FirstName    *string     `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName     *string     `json:"last_name" validate:"omitempty,min=1,max=100"`
	Company      *string     `json:"company" validate:"omitempty,min=1,max=255"`
	Email        *string     `json:"email" validate:"omitempty,email"`
	Title        *string     `json:"title" validate:"omitempty,max=100"`
	Source       *string     `json:"source" validate:"omitempty,max=100"`
	Status       *LeadStatus `json:"status" validate:"omitempty,oneof=NEW CONTACTED QUALIFIED LOST CONVERTED"`
	Value        *float64    `json:"value" validate:"omitempty,gte=0"`
	AssignedToID *string     `json:"assigned_to_id" validate:"omitempty,uuid"`
}

func (u LeadUpdate) Fields() map[string]any {
	m := map[string]any{}
	setIf(m, "first_name", u.FirstName)
	setIf(m, "last_name", u.LastName)
	setIf(m, "company", u.Company)
	setIf(m, "email", u.Email)
	setIf(m, "title", u.Title)
	setIf(m, "source", u.Source)
	setIf(m, "status", u.Status)
	setIf(m, "value", u.Value)
	setIf(m, "assigned_to_id", u.AssignedToID)
	return m
}

// LeadStat is one row of the per-status overview.
type LeadStat struct {
	Status     LeadStatus `json:"status"`
	Count      int64      `json:"count"`
	TotalValue float64    `json:"total_value"`
}

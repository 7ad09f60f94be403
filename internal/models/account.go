package models

// Account is a company or organization.
type Account struct {
	Base
	Name           string  `gorm:"size:255;not null;index" json:"name"`
	Industry       *string `gorm:"size:100" json:"industry,omitempty"`
	Website        *string `gorm:"size:255" json:"website,omitempty"`
	Phone          *string `gorm:"size:50" json:"phone,omitempty"`
	BillingAddress *string `gorm:"type:text" json:"billing_address,omitempty"`
	CreatedByID    string  `gorm:"size:36;not null;index" json:"created_by_id"`
	AssignedToID   *string `gorm:"size:36;index" json:"assigned_to_id,omitempty"`

	Contacts []Contact `gorm:"foreignKey:AccountID" json:"-"`
}

// GetOwnerID returns the assignee when set, else the creator.
func (a *Account) GetOwnerID() string {
	if a.AssignedToID != nil && *a.AssignedToID != "" {
		return *a.AssignedToID
	}
	return a.CreatedByID
}

type AccountCreate struct {
	Name           string  `json:"name" validate:"required,max=255"`
	Industry       *string `json:"industry" validate:"omitempty,max=100"`
	Website        *string `json:"website" validate:"omitempty,max=255"`
	Phone          *string `json:"phone" validate:"omitempty,max=50"`
	BillingAddress *string `json:"billing_address"`
	AssignedToID   *string `json:"assigned_to_id" validate:"omitempty,uuid"`
}

type AccountUpdate struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=255"`
	Industry       *string `json:"industry" validate:"omitempty,max=100"`
	Website        *string `json:"website" validate:"omitempty,max=255"`
	Phone          *string `json:"phone" validate:"omitempty,max=50"`
	BillingAddress *string `json:"billing_address"`
	AssignedToID   *string `json:"assigned_to_id" validate:"omitempty,uuid"`
}

func (u AccountUpdate) Fields() map[string]any {
	m := map[string]any{}
	setIf(m, "name", u.Name)
	setIf(m, "industry", u.Industry)
	setIf(m, "website", u.Website)
	setIf(m, "phone", u.Phone)
	setIf(m, "billing_address", u.BillingAddress)
	setIf(m, "assigned_to_id", u.AssignedToID)
	return m
}

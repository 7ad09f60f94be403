package models

// Contact is a person, optionally attached to an Account.
type Contact struct {
	Base
	FirstName string  `gorm:"size:100;not null" json:"first_name"`
	LastName  string  `gorm:"size:100;not null" json:"last_name"`
	Email     *string `gorm:"size:255;index" json:"email,omitempty"`
	Phone     *string `gorm:"size:50" json:"phone,omitempty"`
	Title     *string `gorm:"size:100" json:"title,omitempty"`
	AccountID *string `gorm:"size:36;index" json:"account_id,omitempty"`
	OwnerID   string  `gorm:"size:36;not null;index" json:"owner_id"`
}

func (c *Contact) GetOwnerID() string { return c.OwnerID }

type ContactCreate struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	Title     *string `json:"title" validate:"omitempty,max=100"`
	AccountID *string `json:"account_id" validate:"omitempty,uuid"`
}

type ContactUpdate struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	Title     *string `json:"title" validate:"omitempty,max=100"`
	AccountID *string `json:"account_id" validate:"omitempty,uuid"`
}

func (u ContactUpdate) Fields() map[string]any {
	m := map[string]any{}
	setIf(m, "first_name", u.FirstName)
	setIf(m, "last_name", u.LastName)
	setIf(m, "email", u.Email)
	setIf(m, "phone", u.Phone)
	setIf(m, "title", u.Title)
	setIf(m, "account_id", u.AccountID)
	return m
}

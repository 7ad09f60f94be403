package models

import "time"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserInactive  UserStatus = "INACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserSuspended:
		return true
	}
	return false
}

// User is a login identity.
// OTP is non-nil only while the account is INACTIVE and awaiting verification.
type User struct {
	Base
	Email        string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	FirstName    string     `gorm:"size:100" json:"first_name"`
	LastName     string     `gorm:"size:100" json:"last_name"`
	Phone        *string    `gorm:"size:50" json:"phone,omitempty"`
	Avatar       *string    `gorm:"size:500" json:"avatar,omitempty"`
	Role         Role       `gorm:"size:20;not null;index" json:"role"`
	Status       UserStatus `gorm:"size:20;not null" json:"status"`
	IsVerified   bool       `gorm:"not null" json:"is_verified"`
	OTP          *string    `gorm:"column:otp;size:12" json:"-"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	IsOnline     bool       `gorm:"not null" json:"is_online"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserUpdate lists the mutable profile fields. Role and Status are admin only.
type UserUpdate struct {
	FirstName *string     `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string     `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string     `json:"phone" validate:"omitempty,max=50"`
	Avatar    *string     `json:"avatar" validate:"omitempty,max=500"`
	Role      *Role       `json:"role" validate:"omitempty,oneof=ADMIN MANAGER EMPLOYEE"`
	Status    *UserStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE SUSPENDED"`
}

// Fields returns the column map for a GORM Updates call.
func (u UserUpdate) Fields() map[string]any {
	m := map[string]any{}
	setIf(m, "first_name", u.FirstName)
	setIf(m, "last_name", u.LastName)
	setIf(m, "phone", u.Phone)
	setIf(m, "avatar", u.Avatar)
	setIf(m, "role", u.Role)
	setIf(m, "status", u.Status)
	return m
}

func setIf[T any](m map[string]any, col string, v *T) {
	if v != nil {
		m[col] = *v
	}
}

// GetOwnerID makes a user the owner of their own record.
func (u *User) GetOwnerID() string { return u.ID }

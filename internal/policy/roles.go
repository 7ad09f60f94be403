// Package policy maps CRM roles onto gate profiles and exposes the
// authorization middleware used by the router.
package policy

import (
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/models"
)

// Resource types known to the gate.
const (
	ResourceUser         = models.EntityUser
	ResourceAccount      = models.EntityAccount
	ResourceContact      = models.EntityContact
	ResourceLead         = models.EntityLead
	ResourceDeal         = models.EntityDeal
	ResourceActivity     = models.EntityActivity
	ResourceNotification = models.EntityNotification
	ResourceAuditLog     = models.EntityAuditLog
)

var readWrite = []gate.Action{gate.ActionList, gate.ActionView, gate.ActionCreate, gate.ActionUpdate}

func join(groups ...[]gate.Permission) []gate.Permission {
	var out []gate.Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var (
	adminProfile = gate.NewStaticProfile(string(models.RoleAdmin), gate.PermissionSuperAdmin)

	// Managers run the whole pipeline but cannot read the audit trail.
	managerProfile = gate.NewStaticProfile(string(models.RoleManager), join(
		[]gate.Permission{
			ResourceAccount + ":*",
			ResourceContact + ":*",
			ResourceLead + ":*",
			ResourceDeal + ":*",
			ResourceActivity + ":*",
			ResourceNotification + ":*",
		},
		gate.Permissions(ResourceUser, gate.ActionList, gate.ActionView, gate.ActionUpdate),
	)...)

	employeeProfile = gate.NewStaticProfile(string(models.RoleEmployee), join(
		gate.Permissions(ResourceAccount, readWrite...),
		gate.Permissions(ResourceLead, append(readWrite, gate.ActionConvert)...),
		gate.Permissions(ResourceActivity, readWrite...),
		gate.Permissions(ResourceContact, gate.CRUD...),
		gate.Permissions(ResourceDeal, gate.CRUD...),
		[]gate.Permission{ResourceNotification + ":*"},
		gate.Permissions(ResourceUser, gate.ActionList, gate.ActionView, gate.ActionUpdate),
	)...)
)

// ProfileFor returns the profile of role, or nil for an unknown role.
func ProfileFor(role models.Role) gate.Profile {
	switch role {
	case models.RoleAdmin:
		return adminProfile
	case models.RoleManager:
		return managerProfile
	case models.RoleEmployee:
		return employeeProfile
	}
	return nil
}

package models

import (
	"github.com/google/uuid"
)

// Subscription status values.
const (
	SubscriptionActive   = "active"
	SubscriptionInactive = "inactive"
)

// Module is a named feature area gated by subscription (e.g. "crm", "communications").
type Module struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// OrganizationSubscription links an organization to a module.
type OrganizationSubscription struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	ModuleID       uuid.UUID `json:"module_id"`
	Status         string    `json:"status"`
}

// Role is a named bundle of permission grants.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// RolePermission authorizes one (module, resource, action) capability for a role.
type RolePermission struct {
	ID       uuid.UUID `json:"id"`
	RoleID   uuid.UUID `json:"role_id"`
	Module   string    `json:"module"`
	Resource string    `json:"resource"`
	Action   string    `json:"action"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin context actions.
const (
	AdminContextSet   = "set"
	AdminContextClear = "clear"
)

// AdminContextEvent records a platform administrator changing the effective organization.
type AdminContextEvent struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	Action             string     `json:"action"`
	FromOrganizationID *uuid.UUID `json:"from_organization_id,omitempty"`
	ToOrganizationID   *uuid.UUID `json:"to_organization_id,omitempty"`
	OccurredAt         time.Time  `json:"occurred_at"`
	ArchivedKey        string     `json:"archived_key,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipPartner is the only relationship type that grants partner visibility.
const RelationshipPartner = "partner"

// Cross-organization access status values.
const (
	AccessActive   = "active"
	AccessInactive = "inactive"
)

// CrossOrganizationAccess lets a host organization grant a partner organization limited visibility.
type CrossOrganizationAccess struct {
	ID                    uuid.UUID `json:"id"`
	HostOrganizationID    uuid.UUID `json:"host_organization_id"`
	PartnerOrganizationID uuid.UUID `json:"partner_organization_id"`
	RelationshipType      string    `json:"relationship_type"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
}

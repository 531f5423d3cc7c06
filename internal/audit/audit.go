// Package audit records platform admin context changes.
package audit

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/pkg/queue"
)

// Publisher hands events to the worker through the admin context queue.
type Publisher struct {
	queue *queue.Queue
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(q *queue.Queue) *Publisher {
	return &Publisher{queue: q}
}

// Publish enqueues event for the worker.
func (p *Publisher) Publish(ctx context.Context, event models.AdminContextEvent) error {
	_, err := p.queue.Enqueue(ctx, queue.QueueAdminContext, queue.JobTypeAdminContextEvent, event)
	return err
}

// Repository writes admin_context_events rows.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an audit repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores event. Re-delivered events with the same id are ignored.
func (r *Repository) Insert(ctx context.Context, event models.AdminContextEvent) error {
	const q = `INSERT INTO admin_context_events (id, user_id, action, from_organization_id, to_organization_id, occurred_at, archived_key)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q,
		event.ID, event.UserID, event.Action,
		nullUUID(event.FromOrganizationID), nullUUID(event.ToOrganizationID),
		event.OccurredAt, event.ArchivedKey,
	)
	return err
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

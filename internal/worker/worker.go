package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/pkg/queue"
	"github.com/opsdesk/backend/pkg/storage"
)

// EventStore persists audit events.
type EventStore interface {
	Insert(ctx context.Context, event models.AdminContextEvent) error
}

// Archiver copies audit events to long-term storage.
type Archiver interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// AuditProcessor drains admin context jobs: archive to S3 (optional), then insert into the database.
type AuditProcessor struct {
	store    EventStore
	archiver Archiver
	queue    *queue.Queue
	logger   *zap.Logger
	backoff  time.Duration
	poll     time.Duration
}

// NewAuditProcessor creates an audit processor. archiver may be nil to skip archiving.
func NewAuditProcessor(store EventStore, archiver Archiver, q *queue.Queue, logger *zap.Logger) *AuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditProcessor{
		store:    store,
		archiver: archiver,
		queue:    q,
		logger:   logger,
		backoff:  queue.RetryBackoff,
		poll:     5 * time.Second,
	}
}

// Process executes one admin context job.
func (p *AuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAdminContextEvent {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var event models.AdminContextEvent
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if p.archiver != nil {
		key := storage.AuditKey(event.ID, event.OccurredAt)
		if err := p.archiver.PutJSON(ctx, key, event); err != nil {
			return fmt.Errorf("archive event: %w", err)
		}
		event.ArchivedKey = key
	}

	if err := p.store.Insert(ctx, event); err != nil {
		p.logger.Error("insert admin context event failed", zap.Error(err), zap.String("event_id", event.ID.String()))
		return fmt.Errorf("insert event: %w", err)
	}

	p.logger.Info("admin context event recorded",
		zap.String("event_id", event.ID.String()),
		zap.String("user_id", event.UserID.String()),
		zap.String("action", event.Action),
		zap.String("archived_key", event.ArchivedKey),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueAdminContext, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			sleep(ctx, p.backoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

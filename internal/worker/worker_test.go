package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/backend/internal/audit"
	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/pkg/queue"
)

type memStore struct {
	mu     sync.Mutex
	events []models.AdminContextEvent
	err    error
}

func (m *memStore) Insert(_ context.Context, e models.AdminContextEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) snapshot() []models.AdminContextEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AdminContextEvent(nil), m.events...)
}

type memArchive struct {
	keys []string
	err  error
}

func (m *memArchive) PutJSON(_ context.Context, key string, _ any) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	return nil
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return queue.NewQueue(client, nil)
}

func enqueueEvent(t *testing.T, q *queue.Queue) (models.AdminContextEvent, *queue.Job) {
	t.Helper()
	event := models.AdminContextEvent{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Action:     models.AdminContextClear,
		OccurredAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, audit.NewPublisher(q).Publish(context.Background(), event))
	job, err := q.Dequeue(context.Background(), queue.QueueAdminContext, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	return event, job
}

func TestAuditProcessor_Process(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	t.Run("archives then stores", func(t *testing.T) {
		event, job := enqueueEvent(t, q)
		store, archive := &memStore{}, &memArchive{}
		require.NoError(t, NewAuditProcessor(store, archive, q, nil).Process(ctx, job))

		want := "audit/2026/10/16/" + event.ID.String() + ".json"
		assert.Equal(t, []string{want}, archive.keys)
		got := store.snapshot()
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0].ArchivedKey)
	})

	t.Run("without archiver", func(t *testing.T) {
		_, job := enqueueEvent(t, q)
		store := &memStore{}
		require.NoError(t, NewAuditProcessor(store, nil, q, nil).Process(ctx, job))
		require.Len(t, store.snapshot(), 1)
		assert.Empty(t, store.snapshot()[0].ArchivedKey)
	})

	t.Run("archive failure is not stored", func(t *testing.T) {
		_, job := enqueueEvent(t, q)
		store := &memStore{}
		err := NewAuditProcessor(store, &memArchive{err: errors.New("s3 down")}, q, nil).Process(ctx, job)
		assert.Error(t, err)
		assert.Empty(t, store.snapshot())
	})

	t.Run("unknown job type", func(t *testing.T) {
		err := NewAuditProcessor(&memStore{}, nil, q, nil).Process(ctx, &queue.Job{Type: "other"})
		assert.Error(t, err)
	})
}

func TestAuditProcessor_RunRetriesToDLQ(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewAuditProcessor(&memStore{err: errors.New("db down")}, nil, q, nil)
	p.backoff = time.Millisecond
	p.poll = 50 * time.Millisecond

	require.NoError(t, audit.NewPublisher(q).Publish(ctx, models.AdminContextEvent{ID: uuid.New(), Action: models.AdminContextSet}))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		n, err := q.Len(context.Background(), queue.QueueDLQ)
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestAuditProcessor_RunStores(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &memStore{}
	p := NewAuditProcessor(store, nil, q, nil)
	p.poll = 50 * time.Millisecond
	go p.Run(ctx)

	require.NoError(t, audit.NewPublisher(q).Publish(ctx, models.AdminContextEvent{ID: uuid.New(), Action: models.AdminContextSet}))
	assert.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)
}

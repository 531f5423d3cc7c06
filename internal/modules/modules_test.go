package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/backend/internal/query"
)

func TestSet(t *testing.T) {
	s := NewSet("crm", "finance", "crm")
	assert.True(t, s.Has("crm"))
	assert.True(t, s.Has("finance"))
	assert.False(t, s.Has("visibility"))
	assert.False(t, s.Has(""))
	assert.Equal(t, []string{"crm", "finance"}, s.Codes())

	var empty Set
	assert.False(t, empty.Has("crm"))
	assert.Empty(t, empty.Codes())
}

func TestRepository_ListActiveCodes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(query.NewRunner(db))
	orgID := uuid.New()

	mock.ExpectQuery("SELECT modules.code FROM organization_subscriptions INNER JOIN modules").
		WithArgs(orgID, "active").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("communications").AddRow("crm"))

	codes, err := repo.ListActiveCodes(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, []string{"communications", "crm"}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeStore struct {
	codes map[uuid.UUID][]string
	err   error
	calls int
}

func (f *fakeStore) ListActiveCodes(_ context.Context, orgID uuid.UUID) ([]string, error) {
	f.calls++
	return f.codes[orgID], f.err
}

func TestResolver_ActiveModules(t *testing.T) {
	ctx := context.Background()
	acme := uuid.New()
	beta := uuid.New()
	store := &fakeStore{codes: map[uuid.UUID][]string{acme: {"crm"}}}
	r := NewResolver(store, nil, nil)

	t.Run("subscribed module", func(t *testing.T) {
		assert.True(t, r.ActiveModules(ctx, acme).Has("crm"))
	})

	t.Run("organization without subscriptions is denied every module", func(t *testing.T) {
		set := r.ActiveModules(ctx, beta)
		for _, code := range []string{"crm", "communications", "visibility", "finance"} {
			assert.False(t, set.Has(code), code)
		}
	})

	t.Run("nil organization skips the query", func(t *testing.T) {
		before := store.calls
		assert.Empty(t, r.ActiveModules(ctx, uuid.Nil))
		assert.Equal(t, before, store.calls)
	})

	t.Run("backend failure yields empty set", func(t *testing.T) {
		failing := NewResolver(&fakeStore{err: errors.New("unavailable")}, nil, nil)
		assert.Empty(t, failing.ActiveModules(ctx, acme))
	})
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/backend/internal/models"
	"github.com/opsdesk/backend/internal/query"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(query.NewRunner(db)), mock
}

func TestRepository_GetActiveUserByEmail(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, password_hash, full_name, is_active, is_platform_admin, created_at, updated_at FROM users").
			WithArgs("alice@co.com", true).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(id.String(), "alice@co.com", nil, "Alice", true, false, now, now))

		u, err := repo.GetActiveUserByEmail(ctx, "alice@co.com")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "Alice", u.FullName)
		assert.Empty(t, u.Password)
		assert.False(t, u.IsPlatformAdmin)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("FROM users").
			WithArgs("ghost@co.com", true).
			WillReturnRows(sqlmock.NewRows(userColumns))

		u, err := repo.GetActiveUserByEmail(ctx, "ghost@co.com")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("backend error", func(t *testing.T) {
		mock.ExpectQuery("FROM users").
			WithArgs("alice@co.com", true).
			WillReturnError(errors.New("connection reset"))

		u, err := repo.GetActiveUserByEmail(ctx, "alice@co.com")
		assert.Error(t, err)
		assert.Nil(t, u)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListActiveMemberships(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()
	userID := uuid.New()
	orgID := uuid.New()
	posID := uuid.New()
	roleID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM organization_users INNER JOIN organizations ON organizations.id = organization_users.organization_id LEFT JOIN staff_positions").
		WithArgs(userID, models.MembershipActive).
		WillReturnRows(sqlmock.NewRows(membershipColumns).
			AddRow(uuid.New().String(), orgID.String(), userID.String(), false, posID.String(), "active", now, now,
				"Acme", "acme", "active",
				posID.String(), "Admin", "#ff0000", roleID.String()))

	list, err := repo.ListActiveMemberships(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	m := list[0]
	assert.Equal(t, orgID, m.OrganizationID)
	assert.Equal(t, orgID, m.Organization.ID)
	assert.Equal(t, "acme", m.Organization.Slug)
	require.NotNil(t, m.Position)
	assert.Equal(t, "Admin", m.Position.Name)
	require.NotNil(t, m.RoleID())
	assert.Equal(t, roleID, *m.RoleID())

	t.Run("membership without position", func(t *testing.T) {
		mock.ExpectQuery("FROM organization_users").
			WithArgs(userID, models.MembershipActive).
			WillReturnRows(sqlmock.NewRows(membershipColumns).
				AddRow(uuid.New().String(), orgID.String(), userID.String(), true, nil, "active", now, now,
					"Acme", "acme", "active",
					nil, nil, nil, nil))

		list, err := repo.ListActiveMemberships(ctx, userID, 2)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].IsOwner)
		assert.Nil(t, list[0].Position)
		assert.Nil(t, list[0].PrimaryPositionID)
		assert.Nil(t, list[0].RoleID())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeStore struct {
	user        *models.User
	userErr     error
	memberships []models.Membership
	memberErr   error
	lastEmail   string
}

func (f *fakeStore) GetActiveUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.lastEmail = email
	return f.user, f.userErr
}

func (f *fakeStore) ListActiveMemberships(_ context.Context, _ uuid.UUID, limit int) ([]models.Membership, error) {
	if len(f.memberships) > limit {
		return f.memberships[:limit], f.memberErr
	}
	return f.memberships, f.memberErr
}

func TestResolver_ResolveUser(t *testing.T) {
	ctx := context.Background()
	alice := &models.User{ID: uuid.New(), Email: "alice@co.com", IsActive: true}

	t.Run("normalizes email", func(t *testing.T) {
		store := &fakeStore{user: alice}
		r := NewResolver(store, nil, nil)
		assert.Equal(t, alice, r.ResolveUser(ctx, "  Alice@Co.com "))
		assert.Equal(t, "alice@co.com", store.lastEmail)
	})

	t.Run("empty email", func(t *testing.T) {
		r := NewResolver(&fakeStore{user: alice}, nil, nil)
		assert.Nil(t, r.ResolveUser(ctx, "   "))
	})

	t.Run("backend failure degrades to nil", func(t *testing.T) {
		r := NewResolver(&fakeStore{userErr: errors.New("timeout")}, nil, nil)
		assert.Nil(t, r.ResolveUser(ctx, "alice@co.com"))
	})
}

func TestResolver_ResolveMembership(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	acme := models.Membership{OrganizationUser: models.OrganizationUser{OrganizationID: uuid.New()}}
	beta := models.Membership{OrganizationUser: models.OrganizationUser{OrganizationID: uuid.New()}}

	tests := []struct {
		name    string
		store   *fakeStore
		userID  uuid.UUID
		wantOrg uuid.UUID
		wantErr error
	}{
		{name: "single membership", store: &fakeStore{memberships: []models.Membership{acme}}, userID: userID, wantOrg: acme.OrganizationID},
		{name: "unaffiliated", store: &fakeStore{}, userID: userID},
		{name: "nil user", store: &fakeStore{memberships: []models.Membership{acme}}, userID: uuid.Nil},
		{name: "backend failure", store: &fakeStore{memberErr: errors.New("boom")}, userID: userID},
		{name: "ambiguous", store: &fakeStore{memberships: []models.Membership{acme, beta}}, userID: userID, wantErr: ErrAmbiguousMembership},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.store, nil, nil)
			m, err := r.ResolveMembership(ctx, tt.userID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			if tt.wantOrg == uuid.Nil {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.wantOrg, m.OrganizationID)
		})
	}
}

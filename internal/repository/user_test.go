package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"socialconnect/internal/models"
	"socialconnect/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	tests := []struct {
		name     string
		id       uint
		wantCode string
	}{
		{"Found", alice.ID, ""},
		{"Not Found", alice.ID + 100, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := repo.GetByID(ctx, tt.id)
			if tt.wantCode != "" {
				assert.True(t, models.IsCode(err, tt.wantCode))
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
		})
	}
}

func TestUserRepository_GetByID_DatabaseError(t *testing.T) {
	t.Parallel()
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
		WithArgs(1, 1).
		WillReturnError(errors.New("connection reset"))

	user, err := repo.GetByID(context.Background(), 1)
	assert.Nil(t, user)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_LookupMissingReturnsNil(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	byEmail, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, byEmail)

	byName, err := repo.GetByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, byName)
}

func TestUserRepository_CreateConflict(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	testutil.CreateUser(t, db, "alice")

	dup := &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "x", IsActive: true}
	err := repo.Create(ctx, dup)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	dupEmail := &models.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "x", IsActive: true}
	err = repo.Create(ctx, dupEmail)
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestUserRepository_UpdateFields(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	testutil.CreateUser(t, db, "bob")

	require.NoError(t, repo.UpdateFields(ctx, alice.ID, map[string]any{"bio": "hello"}))
	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Bio)

	err = repo.UpdateFields(ctx, alice.ID, map[string]any{"username": "bob"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	err = repo.SetActive(ctx, alice.ID+100, false)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_ActivationAndLogin(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	require.NoError(t, repo.SetActive(ctx, alice.ID, false))
	require.NoError(t, repo.SetAdmin(ctx, alice.ID, true))
	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, alice.ID, at))

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.True(t, got.IsAdmin)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(at))

	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, alice.ID, admins[0].ID)
}

func TestUserRepository_List(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	testutil.CreateUser(t, db, "alice")
	testutil.CreateUser(t, db, "alfred")
	bob := testutil.CreateUser(t, db, "bob")
	require.NoError(t, repo.SetActive(ctx, bob.ID, false))

	tests := []struct {
		name   string
		filter UserFilter
		want   int64
	}{
		{"all", UserFilter{Page: NewPage(0, 0)}, 3},
		{"active only", UserFilter{Status: UserStatusActive, Page: NewPage(0, 0)}, 2},
		{"inactive only", UserFilter{Status: UserStatusInactive, Page: NewPage(0, 0)}, 1},
		{"search is case insensitive", UserFilter{Search: "AL", Page: NewPage(0, 0)}, 2},
		{"search matches first name", UserFilter{Search: "Bob", Page: NewPage(0, 0)}, 1},
		{"wildcards are literal", UserFilter{Search: "%", Page: NewPage(0, 0)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, total, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, total)
			assert.Len(t, users, int(tt.want))
		})
	}

	page, total, err := repo.List(ctx, UserFilter{Page: NewPage(1, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

func TestUserRepository_CountsAndMentions(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	testutil.Follow(t, db, bob.ID, alice.ID)
	testutil.Follow(t, db, carol.ID, alice.ID)
	testutil.Follow(t, db, alice.ID, bob.ID)
	testutil.CreatePost(t, db, alice.ID, "one")
	hidden := testutil.CreatePost(t, db, alice.ID, "two")
	require.NoError(t, db.Model(hidden).Update("is_active", false).Error)

	counts, err := repo.Counts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserCounts{Followers: 2, Following: 1, Posts: 1}, counts)

	ids, err := repo.IDsByUsernames(ctx, []string{"bob", "carol", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{"bob": bob.ID, "carol": carol.ID}, ids)
}

func TestNewPage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Page{Limit: DefaultLimit, Offset: 0}, NewPage(0, -5))
	assert.Equal(t, Page{Limit: MaxLimit, Offset: 10}, NewPage(1000, 10))
	assert.Equal(t, Page{Limit: 5, Offset: 0}, NewPage(5, 0))
}

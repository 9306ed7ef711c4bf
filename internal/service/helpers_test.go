package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"socialconnect/internal/auth"
	"socialconnect/internal/featureflags"
	"socialconnect/internal/mailer"
	"socialconnect/internal/models"
	"socialconnect/internal/repository"
	"socialconnect/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testPassword    = "Str0ng!Passw0rd#"
	testNewPassword = "An0ther$ecretKey9"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, *n)
	return nil
}

func (p *recordingPublisher) Sent() []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Notification(nil), p.sent...)
}

// testEnv wires every service over one SQLite database.
type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	follows       repository.FollowRepository
	posts         repository.PostRepository
	refresh       repository.RefreshTokenStore
	notifications repository.NotificationRepository
	tokens        *auth.TokenService
	hasher        *auth.PasswordHasher
	mail          *mailer.LogMailer
	publisher     *recordingPublisher

	auth     *AuthService
	user     *UserService
	post     *PostService
	comment  *CommentService
	notifier *NotificationService
	admin    *AdminService
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests-0123456789abcdef",
		RefreshSecret: "refresh-secret-for-tests-0123456789abcdef",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    auth.DefaultRefreshTTL,
	})
	require.NoError(t, err)

	e := &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		follows:       repository.NewFollowRepository(db),
		posts:         repository.NewPostRepository(db),
		refresh:       repository.NewRefreshTokenStore(db),
		notifications: repository.NewNotificationRepository(db),
		tokens:        tokens,
		hasher:        auth.NewPasswordHasher(bcrypt.MinCost),
		mail:          mailer.NewLogMailer(nil),
		publisher:     &recordingPublisher{},
	}
	ff := featureflags.NewManager(flags)
	e.notifier = NewNotificationService(e.notifications, e.users, e.publisher, ff)
	e.auth = NewAuthService(AuthDeps{
		Users:            e.users,
		RefreshTokens:    e.refresh,
		Tokens:           tokens,
		Hasher:           e.hasher,
		Mailer:           e.mail,
		PasswordResetURL: "https://app.example.com/reset-password",
	})
	e.user = NewUserService(e.users, e.follows, e.notifier)
	e.post = NewPostService(e.posts, e.follows, e.notifier, ff)
	e.comment = NewCommentService(repository.NewCommentRepository(db), e.users, e.post, e.notifier)
	e.admin = NewAdminService(AdminDeps{
		Users:         e.users,
		Posts:         e.posts,
		Stats:         repository.NewStatsRepository(db),
		RefreshTokens: e.refresh,
		Flags:         ff,
		AdminSecret:   "provision-secret-key",
	})
	return e
}

// register creates an active account with testPassword through the service.
func (e *testEnv) register(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Email:     username + "@example.com",
		Username:  username,
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return u
}

func assertCode(t *testing.T, err error, code string, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	assert.True(t, models.IsCode(err, code), "want %s, got %v", code, err)
}

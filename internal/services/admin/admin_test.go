package admin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaderEmail = "leader@fileshare.local"

type env struct {
	clock    *testutil.Clock
	store    storage.StorageService
	users    repositories.UserRepository
	files    repositories.FileRepository
	shares   repositories.ShareRepository
	sessions repositories.SessionRepository
	session  SessionService
	auth     AuthService
	admin    UserService
	stats    StatsService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	store, err := storage.NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	e := &env{
		clock:    testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		store:    store,
		users:    repositories.NewUserRepository(db),
		files:    repositories.NewFileRepository(db),
		shares:   repositories.NewShareRepository(db),
		sessions: repositories.NewSessionRepository(db),
	}
	jwtCfg := config.JWTConfig{SecretKey: "test-secret", ExpiresIn: 7 * 24 * time.Hour, Issuer: "go-fileshare"}
	e.session = NewSessionService(e.users, e.sessions, jwtCfg, e.clock.Now)
	e.auth = NewAuthService(e.users, e.session, config.DemoConfig{Enabled: true, Lifetime: 30 * time.Minute}, e.clock.Now)
	e.admin = NewUserService(e.users, e.files, e.shares, e.sessions, repositories.NewTransactionManager(db), store, leaderEmail)
	e.stats = NewStatsService(e.users, e.files, e.shares, e.sessions)
	return e
}

func (e *env) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), email, password)
	require.NoError(t, err)
	return u
}

func (e *env) fileFor(t *testing.T, u *models.User, name, content string) *models.File {
	t.Helper()
	ctx := context.Background()
	_, err := e.store.PutObject(ctx, name, strings.NewReader(content), int64(len(content)), "")
	require.NoError(t, err)
	f := &models.File{Filename: name, OriginalName: name, Mimetype: "text/plain", Size: int64(len(content)), Path: name, UploadedAt: e.clock.Now(), UserID: u.ID}
	require.NoError(t, e.files.Create(ctx, f))
	return f
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u := e.register(t, "  Alice@Example.com ", "secret123")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)

	_, err := e.auth.Register(ctx, "alice@example.com", "another1")
	assert.ErrorIs(t, err, xerr.ErrEmailAlreadyExists)
	_, err = e.auth.Register(ctx, "bob@example.com", "123")
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)

	res, err := e.auth.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, e.clock.Now().Add(7*24*time.Hour), res.ExpiresAt)

	got, err := e.session.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice@example.com", "secret123")

	_, wrongPassword := e.auth.Login(ctx, "alice@example.com", "nope-nope")
	_, unknownEmail := e.auth.Login(ctx, "ghost@example.com", "nope-nope")
	assert.Equal(t, xerr.ErrInvalidCredentials, wrongPassword)
	assert.Equal(t, wrongPassword, unknownEmail)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice@example.com", "secret123")
	res, err := e.auth.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, res.Token))

	// 签名仍然有效，但 session 已删除
	_, err = utils.ParseToken(res.Token, "test-secret", "go-fileshare", e.clock.Now)
	require.NoError(t, err)
	_, err = e.session.ValidateToken(ctx, res.Token)
	assert.ErrorIs(t, err, xerr.ErrTokenInvalid)
}

func TestValidateTokenFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.session.ValidateToken(ctx, "")
	assert.ErrorIs(t, err, xerr.ErrUnauthorized)
	_, err = e.session.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, xerr.ErrTokenInvalid)

	// 签名正确但从未写入 session
	token, _, err := utils.GenerateToken(1, "x@example.com", models.RoleUser, "test-secret", "go-fileshare", time.Hour, e.clock.Now())
	require.NoError(t, err)
	_, err = e.session.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, xerr.ErrTokenInvalid)
}

func TestValidateTokenDropsSessionOfInactiveUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "alice@example.com", "secret123")
	res, err := e.auth.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, e.users.Update(ctx, u.ID, map[string]any{"is_active": false}))

	_, err = e.session.ValidateToken(ctx, res.Token)
	assert.ErrorIs(t, err, xerr.ErrTokenInvalid)
	s, err := e.sessions.FindByToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Nil(t, s, "stale session should be deleted")
}

func TestValidateTokenDropsExpiredSessionRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "alice@example.com", "secret123")

	// JWT 还有效，session 行已过期
	token, _, err := utils.GenerateToken(u.ID, u.Email, u.Role, "test-secret", "go-fileshare", time.Hour, e.clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.sessions.Create(ctx, &models.Session{UserID: u.ID, Token: token, ExpiresAt: e.clock.Now().Add(time.Minute)}))

	e.clock.Advance(2 * time.Minute)
	_, err = e.session.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, xerr.ErrTokenInvalid)
	s, err := e.sessions.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestDemoAccountExpiresIndependentlyOfToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	demo, err := e.auth.ProvisionDemo(ctx)
	require.NoError(t, err)
	assert.True(t, demo.User.IsTemporaryDemo)
	assert.True(t, strings.HasPrefix(demo.User.Email, "demo-"))
	assert.True(t, strings.HasSuffix(demo.User.Email, "@demo.fileshare.local"))
	assert.Equal(t, e.clock.Now().Add(30*time.Minute), demo.DemoExpiresAt)
	assert.Equal(t, e.clock.Now().Add(7*24*time.Hour), demo.ExpiresAt)

	_, err = e.session.ValidateToken(ctx, demo.Token)
	require.NoError(t, err)

	// 固定密码可以登录
	_, err = e.auth.Login(ctx, demo.User.Email, DemoPassword)
	require.NoError(t, err)

	e.clock.Advance(31 * time.Minute)

	_, err = utils.ParseToken(demo.Token, "test-secret", "go-fileshare", e.clock.Now)
	require.NoError(t, err, "token itself is still cryptographically valid")
	_, err = e.session.ValidateToken(ctx, demo.Token)
	assert.ErrorIs(t, err, xerr.ErrTokenInvalid)

	_, err = e.auth.Login(ctx, demo.User.Email, DemoPassword)
	assert.ErrorIs(t, err, xerr.ErrAccountDisabled)
}

func TestProvisionDemoDisabled(t *testing.T) {
	e := newEnv(t)
	auth := NewAuthService(e.users, e.session, config.DemoConfig{Enabled: false}, e.clock.Now)
	_, err := auth.ProvisionDemo(context.Background())
	assert.ErrorIs(t, err, xerr.ErrForbidden)
}

func TestLeaderAccountIsProtected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	leader, err := e.admin.CreateUser(ctx, CreateUserInput{Email: leaderEmail, Password: "leaderpw", Role: models.RoleAdmin})
	require.NoError(t, err)
	other, err := e.admin.CreateUser(ctx, CreateUserInput{Email: "admin2@example.com", Password: "adminpw", Role: models.RoleAdmin})
	require.NoError(t, err)

	for _, actor := range []uint64{leader.ID, other.ID} {
		assert.ErrorIs(t, e.admin.DeleteUser(ctx, actor, leader.ID), xerr.ErrProtectedAccount)
	}
	inactive := false
	_, err = e.admin.UpdateUser(ctx, leader.ID, UpdateUserInput{IsActive: &inactive})
	assert.ErrorIs(t, err, xerr.ErrProtectedAccount)
	role := models.RoleUser
	_, err = e.admin.UpdateUser(ctx, leader.ID, UpdateUserInput{Role: &role})
	assert.ErrorIs(t, err, xerr.ErrProtectedAccount)

	still, err := e.admin.GetUser(ctx, leader.ID)
	require.NoError(t, err)
	assert.True(t, still.IsActive)
	assert.Equal(t, models.RoleAdmin, still.Role)

	// 不能把其他账号改成领导邮箱
	email := leaderEmail
	_, err = e.admin.UpdateUser(ctx, other.ID, UpdateUserInput{Email: &email})
	assert.ErrorIs(t, err, xerr.ErrEmailAlreadyExists)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, err := e.admin.CreateUser(ctx, CreateUserInput{Email: "a@example.com", Password: "adminpw", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.ErrorIs(t, e.admin.DeleteUser(ctx, a.ID, a.ID), xerr.ErrForbidden)
}

func TestUpdateUserIsPartial(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "alice@example.com", "secret123")
	res, err := e.auth.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	role := "admin"
	updated, err := e.admin.UpdateUser(ctx, u.ID, UpdateUserInput{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.True(t, updated.IsActive)

	bad := "superuser"
	_, err = e.admin.UpdateUser(ctx, u.ID, UpdateUserInput{Role: &bad})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)

	inactive := false
	_, err = e.admin.UpdateUser(ctx, u.ID, UpdateUserInput{IsActive: &inactive})
	require.NoError(t, err)
	s, err := e.sessions.FindByToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Nil(t, s, "deactivation removes sessions")

	password := "newpass99"
	_, err = e.admin.UpdateUser(ctx, u.ID, UpdateUserInput{Password: &password})
	require.NoError(t, err)
	stored, err := e.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPasswordHash("newpass99", stored.PasswordHash))

	_, err = e.admin.UpdateUser(ctx, 424242, UpdateUserInput{})
	assert.ErrorIs(t, err, xerr.ErrUserNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin, err := e.admin.CreateUser(ctx, CreateUserInput{Email: "admin@example.com", Password: "adminpw", Role: models.RoleAdmin})
	require.NoError(t, err)
	u := e.register(t, "alice@example.com", "secret123")
	_, err = e.auth.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	f := e.fileFor(t, u, "alice.txt", "hello")
	require.NoError(t, e.shares.Create(ctx, &models.Share{Token: "alice-share", FileID: f.ID, UserID: u.ID, IsActive: true}))
	require.NoError(t, e.shares.Create(ctx, &models.Share{Token: "admin-share", FileID: f.ID, UserID: admin.ID, IsActive: true}))

	usage, err := e.admin.GetUserStorage(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.Bytes)
	assert.Equal(t, int64(1), usage.FileCount)

	require.NoError(t, e.admin.DeleteUser(ctx, admin.ID, u.ID))

	_, err = e.admin.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, xerr.ErrUserNotFound)
	for _, token := range []string{"alice-share", "admin-share"} {
		s, err := e.shares.FindByToken(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	n, err := e.sessions.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = e.store.GetObject(ctx, "alice.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestPurgeExpiredDemoUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	demo, err := e.auth.ProvisionDemo(ctx)
	require.NoError(t, err)
	e.fileFor(t, demo.User, "demo.txt", "demo")
	keeper := e.register(t, "keeper@example.com", "secret123")

	n, err := e.admin.PurgeExpiredDemoUsers(ctx, e.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	e.clock.Advance(31 * time.Minute)
	n, err = e.admin.PurgeExpiredDemoUsers(ctx, e.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gone, err := e.users.FindByID(ctx, demo.User.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := e.users.FindByID(ctx, keeper.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestSystemStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.admin.CreateUser(ctx, CreateUserInput{Email: leaderEmail, Password: "leaderpw", Role: models.RoleAdmin})
	require.NoError(t, err)
	u := e.register(t, "alice@example.com", "secret123")
	_, err = e.auth.ProvisionDemo(ctx)
	require.NoError(t, err)
	f := e.fileFor(t, u, "a.txt", "12345")
	require.NoError(t, e.shares.Create(ctx, &models.Share{Token: "t1", FileID: f.ID, UserID: u.ID, IsActive: true, Downloads: 3}))

	stats, err := e.stats.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Users)
	assert.Equal(t, int64(1), stats.Admins)
	assert.Equal(t, int64(1), stats.DemoUsers)
	assert.Equal(t, int64(1), stats.Files)
	assert.Equal(t, int64(5), stats.TotalBytes)
	assert.Equal(t, int64(1), stats.Shares)
	assert.Equal(t, int64(1), stats.ActiveShares)
	assert.Equal(t, int64(3), stats.TotalDownloads)
	assert.Equal(t, int64(1), stats.Sessions)
	require.Len(t, stats.TopUploaders, 1)
	assert.Equal(t, "alice@example.com", stats.TopUploaders[0].Email)
}

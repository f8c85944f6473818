package share

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc    ShareService
	clock  *testutil.Clock
	users  repositories.UserRepository
	files  repositories.FileRepository
	shares repositories.ShareRepository
	store  storage.StorageService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	store, err := storage.NewLocalStorageService(t.TempDir())
	require.NoError(t, err)
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	e := &env{
		clock:  clock,
		users:  repositories.NewUserRepository(db),
		files:  repositories.NewFileRepository(db),
		shares: repositories.NewShareRepository(db),
		store:  store,
	}
	e.svc = NewShareService(e.shares, e.files, store, clock.Now)
	return e
}

func (e *env) user(t *testing.T, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: models.RoleUser, IsActive: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) file(t *testing.T, owner *models.User, content string) *models.File {
	t.Helper()
	ctx := context.Background()
	name := owner.Email + "-" + time.Now().Format("150405.000000000") + ".txt"
	_, err := e.store.PutObject(ctx, name, strings.NewReader(content), int64(len(content)), "text/plain")
	require.NoError(t, err)

	expires := e.clock.Now().Add(7 * 24 * time.Hour)
	f := &models.File{
		Filename:     name,
		OriginalName: "report.txt",
		Mimetype:     "text/plain",
		Size:         int64(len(content)),
		Path:         name,
		UploadedAt:   e.clock.Now(),
		ExpiresAt:    &expires,
		UserID:       owner.ID,
	}
	require.NoError(t, e.files.Create(ctx, f))
	return f
}

func ptr[T any](v T) *T { return &v }

func TestCreateShareOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	other := e.user(t, "other@example.com")
	f := e.file(t, owner, "data")

	_, err := e.svc.CreateShare(ctx, other.ID, false, CreateShareInput{FileID: f.ID})
	assert.ErrorIs(t, err, xerr.ErrPermissionDenied)

	s, err := e.svc.CreateShare(ctx, other.ID, true, CreateShareInput{FileID: f.ID})
	require.NoError(t, err)
	assert.Len(t, s.Token, 32)

	_, err = e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: 424242})
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)

	_, err = e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, MaxDownloads: ptr(int64(0))})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
	_, err = e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(-1.0)})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestCreateShareExpiryBounds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "hello")

	_, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(3000000.0)})
	require.ErrorIs(t, err, xerr.ErrInvalidParams)
	_, err = e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(float64(MaxExpiresInHours) + 1)})
	require.ErrorIs(t, err, xerr.ErrInvalidParams)

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(float64(MaxExpiresInHours))})
	require.NoError(t, err)
	require.NotNil(t, s.ExpiresAt)
	assert.True(t, s.ExpiresAt.After(e.clock.Now()))

	_, err = e.svc.ValidateForDownload(ctx, s.Token, "")
	require.NoError(t, err)
}

func TestCreateShareHashesPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, Password: ptr("hunter22")})
	require.NoError(t, err)
	require.NotNil(t, s.PasswordHash)
	assert.NotEqual(t, "hunter22", *s.PasswordHash)
	assert.Equal(t, "report.txt", s.Title)

	a, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID})
	require.NoError(t, err)
	assert.NotEqual(t, s.Token, a.Token)
}

func TestResolveShareDoesNotLeakState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, Password: ptr("pw1234")})
	require.NoError(t, err)

	view, err := e.svc.ResolveShare(ctx, s.Token)
	require.NoError(t, err)
	assert.True(t, view.HasPassword)
	assert.Equal(t, "report.txt", view.File.OriginalName)

	_, err = e.svc.SetShareActive(ctx, owner.ID, false, s.ID, false)
	require.NoError(t, err)

	_, inactiveErr := e.svc.ResolveShare(ctx, s.Token)
	_, missingErr := e.svc.ResolveShare(ctx, "never-issued-token")
	assert.Equal(t, xerr.ErrShareNotFound, inactiveErr)
	assert.Equal(t, missingErr, inactiveErr)
}

func TestValidateExpiredRegardlessOfDownloads(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	fresh, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(1.0), MaxDownloads: ptr(int64(10))})
	require.NoError(t, err)
	used, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(1.0), MaxDownloads: ptr(int64(1))})
	require.NoError(t, err)
	require.NoError(t, e.svc.RecordDownload(ctx, used.Token))

	_, err = e.svc.ValidateForDownload(ctx, fresh.Token, "")
	require.NoError(t, err)
	_, err = e.svc.ValidateForDownload(ctx, used.Token, "")
	assert.ErrorIs(t, err, xerr.ErrShareLimitReached)

	e.clock.Advance(2 * time.Hour)

	_, err = e.svc.ValidateForDownload(ctx, fresh.Token, "")
	assert.ErrorIs(t, err, xerr.ErrShareExpired)
	_, err = e.svc.ValidateForDownload(ctx, used.Token, "")
	assert.ErrorIs(t, err, xerr.ErrShareExpired)
}

func TestValidateWithoutLimitsStaysValid(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID})
	require.NoError(t, err)

	e.clock.Advance(24 * time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, e.svc.RecordDownload(ctx, s.Token))
	}
	_, err = e.svc.ValidateForDownload(ctx, s.Token, "")
	assert.NoError(t, err)
}

func TestPasswordGate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, Password: ptr("open-sesame"), ExpiresInHours: ptr(1.0), MaxDownloads: ptr(int64(1))})
	require.NoError(t, err)

	_, err = e.svc.ValidateForDownload(ctx, s.Token, "")
	assert.ErrorIs(t, err, xerr.ErrSharePasswordRequired)
	_, err = e.svc.ValidateForDownload(ctx, s.Token, "wrong")
	assert.ErrorIs(t, err, xerr.ErrSharePasswordIncorrect)
	_, err = e.svc.ValidateForDownload(ctx, s.Token, "open-sesame")
	assert.NoError(t, err)

	// 下载次数用尽或过期后，缺少或错误的密码依然不能通过
	require.NoError(t, e.svc.RecordDownload(ctx, s.Token))
	for _, pw := range []string{"", "wrong"} {
		_, err = e.svc.ValidateForDownload(ctx, s.Token, pw)
		assert.Error(t, err)
	}
	e.clock.Advance(2 * time.Hour)
	for _, pw := range []string{"", "wrong"} {
		_, err = e.svc.ValidateForDownload(ctx, s.Token, pw)
		assert.Error(t, err)
	}
}

func TestDownloadSharedSingleUse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "one-time payload")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, MaxDownloads: ptr(int64(1))})
	require.NoError(t, err)

	file, reader, err := e.svc.DownloadShared(ctx, s.Token, "")
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, "one-time payload", string(body))
	assert.Equal(t, "report.txt", file.OriginalName)

	_, _, err = e.svc.DownloadShared(ctx, s.Token, "")
	assert.ErrorIs(t, err, xerr.ErrShareLimitReached)
}

func TestRecordDownloadConcurrentNoOvershoot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, MaxDownloads: ptr(int64(4))})
	require.NoError(t, err)

	var ok, limited int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := e.svc.RecordDownload(ctx, s.Token); {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, xerr.ErrShareLimitReached):
				atomic.AddInt64(&limited, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4), ok)
	assert.Equal(t, int64(12), limited)

	stored, err := e.shares.FindByToken(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.Downloads)
}

func TestRecordDownloadReasons(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	f := e.file(t, owner, "data")

	assert.ErrorIs(t, e.svc.RecordDownload(ctx, "missing"), xerr.ErrShareNotFound)

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID, ExpiresInHours: ptr(1.0)})
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	assert.ErrorIs(t, e.svc.RecordDownload(ctx, s.Token), xerr.ErrShareExpired)
}

func TestManageShares(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@example.com")
	other := e.user(t, "other@example.com")
	f := e.file(t, owner, "data")

	s, err := e.svc.CreateShare(ctx, owner.ID, false, CreateShareInput{FileID: f.ID})
	require.NoError(t, err)

	list, total, err := e.svc.ListUserShares(ctx, owner.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	_, err = e.svc.SetShareActive(ctx, other.ID, false, s.ID, false)
	assert.ErrorIs(t, err, xerr.ErrPermissionDenied)
	assert.ErrorIs(t, e.svc.DeleteShare(ctx, other.ID, false, s.ID), xerr.ErrPermissionDenied)

	require.NoError(t, e.svc.DeleteShare(ctx, other.ID, true, s.ID))
	assert.ErrorIs(t, e.svc.DeleteShare(ctx, owner.ID, false, s.ID), xerr.ErrShareNotFound)
}

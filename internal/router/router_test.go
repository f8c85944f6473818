package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/ratelimit"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/testutil"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/cleanup"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/3Eeeecho/go-fileshare/internal/setup"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	leaderEmail    = "leader@fileshare.local"
	leaderPassword = "leader-pass"
)

type testApp struct {
	engine *gin.Engine
	clock  *testutil.Clock
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T, opts Options) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	cfg := &config.Config{
		JWT:   config.JWTConfig{SecretKey: "router-secret", ExpiresIn: 7 * 24 * time.Hour, Issuer: "go-fileshare"},
		File:  config.FileConfig{Retention: 7 * 24 * time.Hour, MaxSize: 1 << 20},
		Demo:  config.DemoConfig{Enabled: true, Lifetime: 30 * time.Minute},
		Admin: config.AdminConfig{LeaderEmail: leaderEmail, LeaderPassword: leaderPassword},
	}
	require.NoError(t, setup.Seed(context.Background(), db, cfg))

	store, err := storage.NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	userRepo := repositories.NewUserRepository(db)
	fileRepo := repositories.NewFileRepository(db)
	shareRepo := repositories.NewShareRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	tm := repositories.NewTransactionManager(db)

	sessions := admin.NewSessionService(userRepo, sessionRepo, cfg.JWT, clock.Now)
	authService := admin.NewAuthService(userRepo, sessions, cfg.Demo, clock.Now)
	userService := admin.NewUserService(userRepo, fileRepo, shareRepo, sessionRepo, tm, store, cfg.Admin.LeaderEmail)
	statsService := admin.NewStatsService(userRepo, fileRepo, shareRepo, sessionRepo)
	fileService := explorer.NewFileService(fileRepo, shareRepo, explorer.NewFileDomainService(fileRepo), tm, store, cfg.File, clock.Now)
	shareService := share.NewShareService(shareRepo, fileRepo, store, clock.Now)
	sweeper := cleanup.NewSweeper(fileService, sessionRepo, shareRepo, userService, time.Hour, clock.Now)

	opts.FrontendOrigin = "http://localhost:3000"
	engine := InitRouter(Handlers{
		Auth:  handlers.NewAuthHandler(authService),
		File:  handlers.NewFileHandler(fileService),
		Share: handlers.NewShareHandler(shareService, opts.FrontendOrigin),
		Admin: handlers.NewAdminHandler(userService, statsService, fileService, sweeper),
	}, sessions, opts)
	return &testApp{engine: engine, clock: clock}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	decode(t, rec, &res)
	return res.Token
}

func (a *testApp) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return a.login(t, email, "secret123")
}

type uploadedFile struct {
	ID           uint64 `json:"id"`
	OriginalName string `json:"originalName"`
	Mimetype     string `json:"mimetype"`
	Size         int64  `json:"size"`
}

func (a *testApp) upload(t *testing.T, token string, files map[string]string) []uploadedFile {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out []uploadedFile
	decode(t, rec, &out)
	return out
}

type createdShare struct {
	Share struct {
		ID    uint64 `json:"id"`
		Token string `json:"token"`
	} `json:"share"`
	ShareURL string `json:"shareUrl"`
}

func (a *testApp) createShare(t *testing.T, token string, body gin.H) createdShare {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/share/create", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out createdShare
	decode(t, rec, &out)
	return out
}

func TestPingAndNoRoute(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := app.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, xerr.NotFoundCode, decode(t, rec, nil).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := app.do(t, http.MethodGet, "/api/upload/files", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/upload/files", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, xerr.TokenInvalidCode, decode(t, rec, nil).Code)
}

func TestLoginRegisterLogout(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")

	rec := app.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	wrong := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	unknown := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ghost@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	rec = app.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verified struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	decode(t, rec, &verified)
	assert.Equal(t, "alice@example.com", verified.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = app.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDemoAccountExpires(t *testing.T) {
	app := newTestApp(t, Options{})

	rec := app.do(t, http.MethodPost, "/api/auth/demo", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var demo struct {
		Token         string    `json:"token"`
		DemoExpiresAt time.Time `json:"demoExpiresAt"`
	}
	decode(t, rec, &demo)
	assert.Equal(t, app.clock.Now().Add(30*time.Minute), demo.DemoExpiresAt.UTC())

	rec = app.do(t, http.MethodGet, "/api/auth/verify", demo.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	app.clock.Advance(31 * time.Minute)
	rec = app.do(t, http.MethodGet, "/api/auth/verify", demo.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")

	files := app.upload(t, token, map[string]string{"report.pdf": "%PDF-1.4 fake"})
	require.Len(t, files, 1)
	assert.Equal(t, "application/pdf", files[0].Mimetype)

	rec := app.do(t, http.MethodGet, fmt.Sprintf("/api/upload/download/%d", files[0].ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")

	rec = app.do(t, http.MethodGet, "/api/upload/files", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Files       []uploadedFile `json:"files"`
		StorageUsed int64          `json:"storageUsed"`
	}
	decode(t, rec, &listed)
	assert.Len(t, listed.Files, 1)
	assert.Equal(t, int64(len("%PDF-1.4 fake")), listed.StorageUsed)

	// 其他用户不能下载
	other := app.registerAndLogin(t, "bob@example.com")
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/upload/download/%d", files[0].ID), other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/upload/files/%d", files[0].ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/upload/download/%d", files[0].ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveDownload(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")
	files := app.upload(t, token, map[string]string{"a.txt": "aaa", "b.txt": "bbbb"})
	require.Len(t, files, 2)

	rec := app.do(t, http.MethodPost, "/api/upload/archive", token, gin.H{"fileIds": []uint64{files[0].ID, files[1].ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.Equal(t, map[string]bool{"a.txt": true, "b.txt": true}, names)

	rec = app.do(t, http.MethodPost, "/api/upload/archive", token, gin.H{"fileIds": []uint64{files[0].ID, 9999}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestShareDownloadLimit(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")
	files := app.upload(t, token, map[string]string{"note.txt": "shared bytes"})

	created := app.createShare(t, token, gin.H{"fileId": files[0].ID, "maxDownloads": 1})
	assert.Equal(t, "http://localhost:3000/share/"+created.Share.Token, created.ShareURL)

	rec := app.do(t, http.MethodGet, "/api/share/"+created.Share.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = app.do(t, http.MethodPost, "/api/share/"+created.Share.Token+"/download", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "shared bytes", rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/share/"+created.Share.Token+"/download", "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, xerr.ShareLimitReachedCode, decode(t, rec, nil).Code)
}

func TestShareDownloadWithEmptyChunkedBody(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")
	files := app.upload(t, token, map[string]string{"note.txt": "chunked"})
	created := app.createShare(t, token, gin.H{"fileId": files[0].ID})

	req := httptest.NewRequest(http.MethodPost, "/api/share/"+created.Share.Token+"/download", io.NopCloser(strings.NewReader("")))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), req.ContentLength)
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "chunked", rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/share/"+created.Share.Token+"/download", "", "not-an-object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, xerr.ValidationFailedCode, decode(t, rec, nil).Code)
}

func TestInactiveShareLooksNeverIssued(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")
	files := app.upload(t, token, map[string]string{"note.txt": "hello"})
	created := app.createShare(t, token, gin.H{"fileId": files[0].ID})

	rec := app.do(t, http.MethodPatch, fmt.Sprintf("/api/share/%d", created.Share.ID), token, gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	inactive := app.do(t, http.MethodGet, "/api/share/"+created.Share.Token, "", nil)
	missing := app.do(t, http.MethodGet, "/api/share/0123456789abcdef0123456789abcdef", "", nil)
	assert.Equal(t, http.StatusNotFound, inactive.Code)
	assert.Equal(t, missing.Code, inactive.Code)
	assert.Equal(t, missing.Body.String(), inactive.Body.String())

	rec = app.do(t, http.MethodPost, "/api/share/"+created.Share.Token+"/download", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordProtectedShare(t *testing.T) {
	app := newTestApp(t, Options{})
	token := app.registerAndLogin(t, "alice@example.com")
	files := app.upload(t, token, map[string]string{"secret.txt": "top secret"})
	created := app.createShare(t, token, gin.H{"fileId": files[0].ID, "password": "open-sesame", "expiresInHours": 1})
	path := "/api/share/" + created.Share.Token + "/download"

	rec := app.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, xerr.SharePasswordRequiredCode, decode(t, rec, nil).Code)

	rec = app.do(t, http.MethodPost, path, "", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, xerr.SharePasswordIncorrectCode, decode(t, rec, nil).Code)

	rec = app.do(t, http.MethodPost, path, "", gin.H{"password": "open-sesame"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "top secret", rec.Body.String())

	app.clock.Advance(61 * time.Minute)
	rec = app.do(t, http.MethodPost, path, "", gin.H{"password": "open-sesame"})
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, xerr.ShareExpiredCode, decode(t, rec, nil).Code)
}

func TestShareOwnership(t *testing.T) {
	app := newTestApp(t, Options{})
	alice := app.registerAndLogin(t, "alice@example.com")
	bob := app.registerAndLogin(t, "bob@example.com")
	files := app.upload(t, alice, map[string]string{"a.txt": "a"})

	rec := app.do(t, http.MethodPost, "/api/share/create", bob, gin.H{"fileId": files[0].ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	created := app.createShare(t, alice, gin.H{"fileId": files[0].ID})
	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/share/%d", created.Share.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/share/my", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Total int64 `json:"total"`
	}
	decode(t, rec, &mine)
	assert.Equal(t, int64(1), mine.Total)

	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/share/%d", created.Share.ID), alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, Options{})
	user := app.registerAndLogin(t, "alice@example.com")
	leader := app.login(t, leaderEmail, leaderPassword)

	rec := app.do(t, http.MethodGet, "/api/admin/stats", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/admin/stats", leader, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Users  int64 `json:"users"`
		Admins int64 `json:"admins"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(1), stats.Admins)

	rec = app.do(t, http.MethodGet, "/api/admin/users?search=alice", leader, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Users []struct {
			ID    uint64 `json:"id"`
			Email string `json:"email"`
		} `json:"users"`
		Total int64 `json:"total"`
	}
	decode(t, rec, &list)
	require.Equal(t, int64(1), list.Total)
	aliceID := list.Users[0].ID

	rec = app.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d", aliceID), leader, gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = app.do(t, http.MethodGet, "/api/auth/verify", user, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "deactivated user loses access")

	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d/storage", aliceID), leader, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", aliceID), leader, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", aliceID), leader, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderCannotBeModified(t *testing.T) {
	app := newTestApp(t, Options{})
	leader := app.login(t, leaderEmail, leaderPassword)

	rec := app.do(t, http.MethodPost, "/api/admin/users", leader, gin.H{"email": "admin2@example.com", "password": "admin-pass", "role": "ADMIN"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	other := app.login(t, "admin2@example.com", "admin-pass")

	rec = app.do(t, http.MethodGet, "/api/auth/verify", leader, nil)
	var me struct {
		User struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}
	decode(t, rec, &me)

	for _, token := range []string{leader, other} {
		rec = app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", me.User.ID), token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, xerr.ProtectedAccountCode, decode(t, rec, nil).Code)

		rec = app.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d", me.User.ID), token, gin.H{"role": "USER"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}
}

func TestAdminCleanup(t *testing.T) {
	app := newTestApp(t, Options{})
	leader := app.login(t, leaderEmail, leaderPassword)
	alice := app.registerAndLogin(t, "alice@example.com")
	app.upload(t, alice, map[string]string{"old.txt": "old"})

	rec := app.do(t, http.MethodPost, "/api/admin/cleanup?task=everything", leader, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 文件和两个 session 都过期；leader 重新登录以便调用接口
	app.clock.Advance(8 * 24 * time.Hour)
	leader = app.login(t, leaderEmail, leaderPassword)

	rec = app.do(t, http.MethodPost, "/api/admin/cleanup?task=all", leader, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report cleanup.Report
	decode(t, rec, &report)
	assert.Equal(t, 1, report.ExpiredFiles)
	assert.Equal(t, int64(2), report.ExpiredSessions)
	assert.Empty(t, report.Errors)
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter, err := ratelimit.NewFixedWindowLimiter(client, "test:login", 2, time.Minute)
	require.NoError(t, err)
	limiter.WithClock(func() time.Time { return time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC) })

	app := newTestApp(t, Options{LoginLimiter: limiter})
	body := gin.H{"email": "ghost@example.com", "password": "whatever"}

	for i := 0; i < 2; i++ {
		rec := app.do(t, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := app.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, xerr.TooManyRequestsCode, decode(t, rec, nil).Code)

	// 注册不受登录限流影响
	rec = app.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "new@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

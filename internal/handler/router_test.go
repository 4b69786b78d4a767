package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/repository"
	"github.com/aryan0dhankhar/doorgate/internal/security"
	"github.com/aryan0dhankhar/doorgate/internal/security/audit"
	"github.com/aryan0dhankhar/doorgate/internal/security/auth"
	"github.com/aryan0dhankhar/doorgate/internal/security/ratelimit"
	"github.com/aryan0dhankhar/doorgate/internal/service"
	"github.com/aryan0dhankhar/doorgate/internal/worker"
	"github.com/aryan0dhankhar/doorgate/pkg/database"
)

var discard = slog.New(slog.DiscardHandler)

type stubSyncer struct {
	err error
}

func (s stubSyncer) RunNow(context.Context) (*domain.ReconcileReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ReconcileReport{UsersAdded: 1}, nil
}

type fixture struct {
	handler http.Handler
	users   *repository.UserRepository
	groups  *repository.GroupRepository
	doors   *repository.DoorRepository
	audit   *repository.AuditRepository
	tokens  *auth.TokenManager
	feed    *service.AuditFeed
}

func newFixture(t *testing.T, syncer service.Syncer) *fixture {
	t.Helper()
	pool := database.OpenTestDB(t)
	db := pool.GetDB()

	f := &fixture{
		users:  repository.NewUserRepository(db, discard),
		groups: repository.NewGroupRepository(db, discard),
		doors:  repository.NewDoorRepository(db, discard),
		audit:  repository.NewAuditRepository(db, discard),
		tokens: auth.NewTokenManager("test-secret", ""),
	}

	accounts := auth.NewAccountStore()
	require.NoError(t, accounts.AddPassword("ops", "admin", "correct horse"))
	auditLog := audit.NewLogger(discard)
	feed := service.NewAuditFeed()
	f.feed = feed
	limiter := ratelimit.NewLimiter(100, time.Minute)
	t.Cleanup(limiter.Stop)

	accessSvc := service.NewAccessService(f.users, f.doors, f.audit, feed, time.Second, discard)
	adminSvc := service.NewAdminService(f.users, f.groups, f.doors, f.audit, syncer, discard)
	authSvc := service.NewAuthService(accounts, f.tokens, time.Hour, auditLog, discard)

	f.handler = NewRouter(RouterDeps{
		Access:       NewAccessHandler(accessSvc, discard),
		Health:       NewHealthHandler(PingFunc(pool.Health), nil, discard),
		Auth:         NewAuthHandler(authSvc, discard),
		Admin:        NewAdminHandler(adminSvc, discard),
		Logs:         NewLogsHandler(feed, discard, nil),
		Tokens:       f.tokens,
		Authz:        security.NewAuthorizationService(discard),
		Audit:        auditLog,
		LoginLimiter: limiter,
		Logger:       discard,
	})
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.groups.Ensure(ctx, "Facilities")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(ctx, &domain.User{Principal: "alice@corp", TagUID: "1234567890", Groups: []string{"Facilities"}}))
	require.NoError(t, f.doors.Create(ctx, &domain.Door{ID: 3, Group: "Facilities"}))
}

func (f *fixture) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := f.tokens.GenerateToken("tester", role, time.Minute)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAccess_GrantEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do("POST", "/access", `{"rfid_uid":"1234567890","door_id":3}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_granted":true,"upn":"alice@corp"}`, rec.Body.String())

	entries, err := f.audit.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Granted)
	assert.Equal(t, "alice@corp", entries[0].Principal)
	assert.Equal(t, "1234567890", entries[0].TagUID)
	assert.Equal(t, int64(3), entries[0].DoorID)
}

func TestAccess_UnknownTagEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do("POST", "/access", `{"rfid_uid":"0000000000","door_id":3}`, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"access_granted":false}`, rec.Body.String())

	entries, err := f.audit.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Granted)
	assert.Empty(t, entries[0].Principal)
}

func TestAccess_MissingFields(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	for _, body := range []string{
		`{"door_id":3}`,
		`{"rfid_uid":"1234567890"}`,
		`{"rfid_uid":"","door_id":3}`,
		`{"rfid_uid":"1234567890","door_id":"3"}`,
		`not json`,
	} {
		rec := f.do("POST", "/access", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	entries, err := f.audit.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAccess_RequiresJSON(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest("POST", "/access", strings.NewReader(`rfid_uid=1&door_id=3`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("GET", "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do("GET", "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do("GET", "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_LoginAndListUsers(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)

	rec := f.do("POST", "/admin/login", `{"username":"ops","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do("POST", "/admin/login", `{"username":"ops","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login service.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = f.do("GET", "/admin/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do("GET", "/admin/users", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"upn":"alice@corp","rfid_uid":"1234567890","groups":["Facilities"]}]`, rec.Body.String())
}

func TestAdmin_ViewerCannotMutate(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)
	viewer := f.token(t, "viewer")

	rec := f.do("GET", "/admin/doors", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":3,"group":"Facilities"}]`, rec.Body.String())

	rec = f.do("POST", "/admin/doors", `{"id":4,"group":"Facilities"}`, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do("DELETE", "/admin/groups/Facilities", "", viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_DoorsAndGroups(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)
	admin := f.token(t, "admin")

	rec := f.do("POST", "/admin/doors", `{"id":4,"group":"Facilities"}`, admin)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do("POST", "/admin/doors", `{"id":4,"group":"Facilities"}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do("POST", "/admin/doors", `{"id":5,"group":"Unknown"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("DELETE", "/admin/doors/4", "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do("DELETE", "/admin/doors/4", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do("DELETE", "/admin/doors/abc", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("DELETE", "/admin/groups/Facilities", "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := f.doors.GetByID(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec = f.do("GET", "/admin/groups", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdmin_LogsAndExport(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)
	viewer := f.token(t, "viewer")

	f.do("POST", "/access", `{"rfid_uid":"1234567890","door_id":3}`, "")
	f.do("POST", "/access", `{"rfid_uid":"0000000000","door_id":3}`, "")

	rec := f.do("GET", "/admin/logs?limit=1", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []LogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].User)
	assert.Equal(t, "0000000000", logs[0].TagUID)

	rec = f.do("GET", "/admin/logs?limit=-1", "", viewer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("GET", "/admin/logs/export", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=logs.csv", rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,user,tag_uid,door_id,granted", lines[0])
	assert.True(t, strings.HasSuffix(lines[2], ",alice@corp,1234567890,3,Yes"))

	rec = f.do("GET", "/admin/logs/export?format=xlsx", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = f.do("GET", "/admin/logs/export?format=pdf", "", viewer)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Sync(t *testing.T) {
	f := newFixture(t, stubSyncer{})
	rec := f.do("POST", "/admin/sync", "", f.token(t, "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"usersAdded":1`)

	busy := newFixture(t, stubSyncer{err: worker.ErrReconcileInProgress})
	rec = busy.do("POST", "/admin/sync", "", busy.token(t, "admin"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = busy.do("POST", "/admin/sync", "", busy.token(t, "viewer"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_LogStream(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/logs/stream?token=" + f.token(t, "viewer")
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	defer resp.Body.Close()

	// the subscription is registered right after the upgrade
	require.Eventually(t, func() bool { return f.feed.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := f.do("POST", "/access", `{"rfid_uid":"1234567890","door_id":3}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	var entry LogResponse
	require.NoError(t, json.Unmarshal(msg, &entry))

	require.NotNil(t, entry.User)
	assert.Equal(t, "alice@corp", *entry.User)
	assert.True(t, entry.Granted)
}

func TestAdmin_LogStreamRequiresToken(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/logs/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

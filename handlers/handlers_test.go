package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furbook.app/petpals/hub"
	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

// call routes a single request through a router holding only h at route, so
// path variables resolve as in production.
func call(t *testing.T, h http.Handler, route, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, rd)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	router := mux.NewRouter()
	router.Handle(route, h).Methods(method)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

type fakeTokens struct{}

func (fakeTokens) Issue(username string) (string, error) { return "tok-" + username, nil }

func (fakeTokens) Parse(token string) (string, error) {
	if u, ok := strings.CutPrefix(token, "tok-"); ok && u != "" {
		return u, nil
	}
	return "", services.ErrInvalidToken
}

type fakeCreds struct {
	mu        sync.Mutex
	creds     map[string]models.Credential
	createErr error
}

func newFakeCreds() *fakeCreds { return &fakeCreds{creds: map[string]models.Credential{}} }

func (f *fakeCreds) Exists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.creds[username]
	return ok, nil
}

func (f *fakeCreds) Get(_ context.Context, username string) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCreds) Create(_ context.Context, c models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creds[c.Username] = c
	return nil
}

// fakeDirectory stands in for the user service client on both the gateway
// and the other services.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[string]models.User
	err   error
}

func newFakeDirectory(users ...models.User) *fakeDirectory {
	d := &fakeDirectory{users: map[string]models.User{}}
	for _, u := range users {
		d.users[u.Username] = u
	}
	return d
}

func (f *fakeDirectory) GetUser(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, &services.HTTPError{Status: http.StatusNotFound, Message: "User not found"}
	}
	return &u, nil
}

func (f *fakeDirectory) CreateUser(_ context.Context, username, displayName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := models.User{Username: username, DisplayName: displayName}
	f.users[username] = u
	return &u, nil
}

func (f *fakeDirectory) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; !ok {
		return &services.HTTPError{Status: http.StatusNotFound, Message: "User not found"}
	}
	delete(f.users, username)
	return nil
}

func (f *fakeDirectory) FindUsers(_ context.Context, usernames []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.User{}
	for _, name := range usernames {
		if u, ok := f.users[name]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestSignupValidation(t *testing.T) {
	creds := newFakeCreds()
	creds.creds["taken"] = models.Credential{Username: "taken"}
	h := Signup(creds, newFakeDirectory())

	tests := []struct {
		name string
		body any
		want string
	}{
		{"malformed", "{", "Invalid request body"},
		{"missing display name", authRequest{Username: "a", Password: "secret1"}, "Username, display name and password are required"},
		{"short password", authRequest{Username: "a", DisplayName: "A", Password: "12345"}, "Password must be at least 6 characters"},
		{"short multibyte password", authRequest{Username: "a", DisplayName: "A", Password: "ééééé"}, "Password must be at least 6 characters"},
		{"long password", authRequest{Username: "a", DisplayName: "A", Password: strings.Repeat("x", services.MaxPasswordBytes+1)}, "Password is too long"},
		{"taken", authRequest{Username: "taken", DisplayName: "T", Password: "secret1"}, "Username already exists"},
		{"reserved", authRequest{Username: "system", DisplayName: "S", Password: "secret1"}, "Username already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, h, "/api/auth/signup", http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorOf(t, rec))
		})
	}
}

func TestSignupThenLogin(t *testing.T) {
	creds := newFakeCreds()
	users := newFakeDirectory()

	rec := call(t, Signup(creds, users), "/api/auth/signup", http.MethodPost, "/api/auth/signup", "",
		authRequest{Username: " mochi ", DisplayName: "Mochi", Password: "hunter22"})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[authResponse](t, rec)
	assert.Empty(t, resp.Token)
	assert.Equal(t, "mochi", resp.User.Username)

	stored := creds.creds["mochi"]
	assert.NotEqual(t, "hunter22", stored.PasswordHashed)
	assert.True(t, services.CheckPassword(stored.PasswordHashed, "hunter22", stored.Salt))

	login := Login(creds, users, fakeTokens{})
	rec = call(t, login, "/api/auth/login", http.MethodPost, "/api/auth/login", "",
		authRequest{Username: "mochi", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, login, "/api/auth/login", http.MethodPost, "/api/auth/login", "",
		authRequest{Username: "nobody", Password: "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, login, "/api/auth/login", http.MethodPost, "/api/auth/login", "",
		authRequest{Username: "mochi", Password: "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[authResponse](t, rec)
	assert.Equal(t, "tok-mochi", resp.Token)
	assert.Equal(t, "Mochi", resp.User.DisplayName)
}

func TestSignupCountsPasswordCharacters(t *testing.T) {
	creds := newFakeCreds()
	rec := call(t, Signup(creds, newFakeDirectory()), "/api/auth/signup", http.MethodPost, "/api/auth/signup", "",
		authRequest{Username: "mochi", DisplayName: "Mochi", Password: "ééé"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, Signup(creds, newFakeDirectory()), "/api/auth/signup", http.MethodPost, "/api/auth/signup", "",
		authRequest{Username: "mochi", DisplayName: "Mochi", Password: "éééééé"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSignupRemovesProfileWhenCredentialFails(t *testing.T) {
	creds := newFakeCreds()
	creds.createErr = errors.New("db down")
	users := newFakeDirectory()

	rec := call(t, Signup(creds, users), "/api/auth/signup", http.MethodPost, "/api/auth/signup", "",
		authRequest{Username: "mochi", DisplayName: "Mochi", Password: "hunter22"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, users.users, "mochi")

	creds.createErr = nil
	rec = call(t, Signup(creds, users), "/api/auth/signup", http.MethodPost, "/api/auth/signup", "",
		authRequest{Username: "mochi", DisplayName: "Mochi", Password: "hunter22"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCheckAuth(t *testing.T) {
	users := newFakeDirectory(models.User{Username: "mochi"})
	h := CheckAuth(users, fakeTokens{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.Header.Set("Authorization", "Bearer tok-mochi")
	rec = httptest.NewRecorder()
	h(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mochi", decode[authResponse](t, rec).User.Username)
}

func TestIdentityReplacesSpoofedHeader(t *testing.T) {
	var seen []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(UserHeader))
	})
	h := Identity(fakeTokens{})(next)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"anonymous", "", http.StatusOK},
		{"valid", "Bearer tok-mochi", http.StatusOK},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
		req.Header.Set(UserHeader, "system")
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, tt.name)
	}
	assert.Equal(t, []string{"", "mochi"}, seen)
}

func TestRequireUserAndSystem(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := call(t, RequireUser(ok), "/x", http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = call(t, RequireUser(ok), "/x", http.MethodGet, "/x", "mochi", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, RequireSystem(ok), "/x", http.MethodGet, "/x", "mochi", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = call(t, RequireSystem(ok), "/x", http.MethodGet, "/x", services.SystemUser, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProxyForwardsAndReportsDeadUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/mochi", r.URL.Path)
		assert.Equal(t, "mochi", r.Header.Get(UserHeader))
		writeJSON(w, http.StatusTeapot, map[string]string{"ok": "yes"})
	}))
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/user/mochi", nil)
	req.Header.Set(UserHeader, "mochi")
	rec := httptest.NewRecorder()
	ProxyTo(target).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	upstream.Close()
	rec = httptest.NewRecorder()
	ProxyTo(target).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/mochi", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Upstream unavailable", errorOf(t, rec))
}

type fakeFramePusher struct {
	chats   []models.ChatPayload
	notis   []models.Notification
	chatErr error
	notiErr error
}

func (f *fakeFramePusher) PushChat(_ context.Context, msg models.ChatPayload) error {
	f.chats = append(f.chats, msg)
	return f.chatErr
}

func (f *fakeFramePusher) PushNotification(n models.Notification) error {
	f.notis = append(f.notis, n)
	return f.notiErr
}

func TestPushMessageUsesHeaderSender(t *testing.T) {
	p := &fakeFramePusher{}
	rec := call(t, PushMessage(p), "/ws/message", http.MethodPost, "/ws/message", "mochi",
		models.ChatPayload{GroupID: 3, Username: "spoofed", Content: "hi"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, p.chats, 1)
	assert.Equal(t, "mochi", p.chats[0].Username)

	p.chatErr = hub.ErrGroupNotFound
	rec = call(t, PushMessage(p), "/ws/message", http.MethodPost, "/ws/message", "mochi",
		models.ChatPayload{GroupID: 4, Content: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	p.chatErr = errors.New("boom")
	rec = call(t, PushMessage(p), "/ws/message", http.MethodPost, "/ws/message", "mochi",
		models.ChatPayload{GroupID: 4, Content: "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPushNotiIsServiceOnly(t *testing.T) {
	p := &fakeFramePusher{}
	n := models.Notification{ID: 1, Username: "mochi", Icon: "user", Desc: "friendRequest:send:bean"}

	rec := call(t, PushNoti(p), "/ws/noti", http.MethodPost, "/ws/noti", "mochi", n)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, p.notis)

	rec = call(t, PushNoti(p), "/ws/noti", http.MethodPost, "/ws/noti", services.SystemUser, n)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	p.notiErr = hub.ErrOffline
	rec = call(t, PushNoti(p), "/ws/noti", http.MethodPost, "/ws/noti", services.SystemUser, n)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

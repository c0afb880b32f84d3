package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/api"
	"github.com/charlesng35/tenantcrm/internal/app"
	iauth "github.com/charlesng35/tenantcrm/internal/auth"
	sharedtestutil "github.com/charlesng35/tenantcrm/internal/database/testutil"
	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/ratelimit"
	"github.com/charlesng35/tenantcrm/pkg/mail"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// BaseURL is the public address links in test emails point to.
const BaseURL = "http://crm.test"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Config *app.Config
	Mailer *RecordingMailer
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// WithEnvironment switches the server environment, e.g. to enable the reset debug channel.
func WithEnvironment(env string) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.Environment = env
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Server: app.ServerConfig{Environment: app.EnvTest, BaseURL: BaseURL},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			BcryptCost:       4,
			PreferenceSecret: "test-suite-preference-secret-32-bytes",
		},
		Invitations:   app.InvitationConfig{ExpiryDays: 7},
		PasswordReset: app.PasswordResetConfig{ExpiryMinutes: 30},
		RateLimits: app.RateLimitConfig{
			Backend:        "memory",
			ResetRequest:   app.WindowConfig{Window: 15 * time.Minute, Max: 5},
			ChangePassword: app.WindowConfig{Window: 10 * time.Minute, Max: 5},
			API:            app.WindowConfig{Window: time.Minute, Max: 1000},
		},
		Workspace: app.WorkspaceConfig{PreferenceMaxAgeDays: 365},
		Email:     app.EmailConfig{Provider: "log", AppName: "TenantCRM"},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	counters := ratelimit.NewMemoryStore(0)
	t.Cleanup(func() { _ = counters.Close() })

	mailer := &RecordingMailer{}
	router, err := api.NewRouter(db, jwtSvc, cfg, counters, mailer)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Config: cfg,
		Mailer: mailer,
	}
}

// RecordingMailer keeps every message instead of delivering it.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

// Send implements mail.Mailer.
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

var tokenLink = regexp.MustCompile(`\?token=([^\s"&]+)`)

// LastToken extracts the raw token from the link in the latest message.
func (m *RecordingMailer) LastToken(t *testing.T) string {
	t.Helper()
	messages := m.Messages()
	require.NotEmpty(t, messages, "no email recorded")
	match := tokenLink.FindStringSubmatch(messages[len(messages)-1].Text)
	require.Len(t, match, 2, "no token link in email")
	raw, err := url.QueryUnescape(match[1])
	require.NoError(t, err)
	return raw
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID                  string  `json:"id"`
	Email               string  `json:"email"`
	Name                *string `json:"name"`
	HasPassword         bool    `json:"has_password"`
	SelectedWorkspaceID *string `json:"selected_workspace_id"`
}

// WorkspacePayload is the workspace block of session and workspace responses.
type WorkspacePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

// Session bundles the JSON response from signup and login along with the
// workspace preference cookie the server set.
type Session struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"`
	User        UserPayload       `json:"user"`
	Workspace   *WorkspacePayload `json:"workspace"`
	Preference  *http.Cookie      `json:"-"`
}

// Signup registers a fresh account owning a workspace called workspaceName.
func (e *Env) Signup(email, password, workspaceName string) Session {
	e.T.Helper()

	payload := map[string]string{
		"name":             "Test User",
		"email":            email,
		"password":         password,
		"confirm_password": password,
		"workspace_name":   workspaceName,
	}
	w := e.Request(http.MethodPost, "/api/auth/signup", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())
	return e.decodeSession(w)
}

// SignupOwner registers an account with a random email and workspace.
func (e *Env) SignupOwner() Session {
	e.T.Helper()
	id := uuid.NewString()[:8]
	return e.Signup("owner-"+id+"@example.com", "password123", "Workspace "+id)
}

// Login authenticates with email and password.
func (e *Env) Login(email, password string) Session {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	return e.decodeSession(w)
}

func (e *Env) decodeSession(w *httptest.ResponseRecorder) Session {
	e.T.Helper()

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var session Session
	DecodeInto(e.T, resp.Data, &session)
	require.NotEmpty(e.T, session.AccessToken)
	session.Preference = PreferenceCookie(w)
	return session
}

// PreferenceCookie returns the workspace preference cookie set on w, if any.
func PreferenceCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.PreferenceCookie {
			return c
		}
	}
	return nil
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lindenpress/linden-access/internal/access"
	"github.com/lindenpress/linden-access/internal/audit"
	"github.com/lindenpress/linden-access/internal/credential"
	"github.com/lindenpress/linden-access/internal/infrastructure/config"
	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
	"github.com/lindenpress/linden-access/internal/session"
	"github.com/lindenpress/linden-access/internal/token"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// testServer creates a Server wired to a real session core backed by
// in-memory SQLite, with two seeded accounts: admin/admin-password and
// member/member-password.
func testServer(t *testing.T) *Server {
	t.Helper()

	db := setupTestDB(t)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	codec := token.NewCodec(testSecret, 15*time.Minute)

	users := session.NewUserRepository(db)
	tokens := session.NewRefreshTokenRepository(db)
	auditRepo := audit.NewSQLiteRepository(db)
	auth := session.NewLocalAuthenticator(users, tokens, codec, 24*time.Hour, log)
	machine := session.NewMachine(codec, credential.NewMemoryStore(), auth, auditRepo, log,
		session.Config{RefreshLead: 2 * time.Minute})

	seedAccount(t, users, "admin", "admin-password", access.RoleAdmin)
	seedAccount(t, users, "member", "member-password", access.RoleMember)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:    log,
		Machine:   machine,
		Users:     users,
		Revoker:   auth,
		AuditRepo: auditRepo,
		Codec:     codec,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv
}

// setupTestDB creates an in-memory SQLite database with the access schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			display_name  TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL,
			permissions   TEXT NOT NULL DEFAULT '[]',
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE TABLE refresh_tokens (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TEXT NOT NULL,
			revoked    INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE TABLE audit_logs (
			id         TEXT PRIMARY KEY,
			action     TEXT NOT NULL,
			subject_id TEXT,
			details    TEXT,
			created_at TEXT NOT NULL
		);
	`
	if _, execErr := db.Exec(schema); execErr != nil {
		t.Fatalf("failed to create test schema: %v", execErr)
	}
	return db
}

func seedAccount(t *testing.T, users session.UserRepository, username, password string, role access.Role) {
	t.Helper()
	hash, err := session.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := users.Create(context.Background(), &session.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

// doJSON performs a request against the server's router and decodes the
// JSON response into out (when out is non-nil).
func doJSON(t *testing.T, srv *Server, method, path, bearer string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

// login signs in and returns the access token.
func login(t *testing.T, srv *Server, username, password string) string {
	t.Helper()
	var resp sessionResponse
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		loginRequest{Username: username, Password: password}, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned no access token")
	}
	return resp.AccessToken
}

func TestHealth(t *testing.T) {
	srv := testServer(t)

	var body map[string]any
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/health", "", nil, &body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["session"] != "anonymous" {
		t.Errorf("session field = %v, want anonymous", body["session"])
	}
}

func TestLogin_Success(t *testing.T) {
	srv := testServer(t)

	var resp sessionResponse
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "",
		loginRequest{Username: "member", Password: "member-password"}, &resp)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.State != "authenticated" {
		t.Errorf("state = %q, want authenticated", resp.State)
	}
	if resp.Principal == nil || resp.Principal.Role != access.RoleMember {
		t.Errorf("principal = %+v, want member role", resp.Principal)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body loginRequest
		want int
	}{
		{"wrong password", loginRequest{Username: "member", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", loginRequest{Username: "ghost", Password: "nope"}, http.StatusUnauthorized},
		{"missing fields", loginRequest{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "", tc.body, nil)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAuthMe(t *testing.T) {
	srv := testServer(t)
	tok := login(t, srv, "admin", "admin-password")

	var resp principalResponse
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", tok, nil, &resp)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Role != access.RoleAdmin {
		t.Errorf("role = %q, want admin", resp.Role)
	}
}

func TestAuthMe_RequiresToken(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", "garbage-token", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status with garbage token = %d, want 401", rec.Code)
	}
}

func TestAuthMe_ExpiredTokenGetsDistinctCode(t *testing.T) {
	srv := testServer(t)

	now := time.Now().UTC().Truncate(time.Second)
	expired, err := srv.codec.Encode(token.Payload{
		SubjectID: "usr-1",
		Role:      access.RoleMember,
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var apiErr Error
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", expired, nil, &apiErr)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if apiErr.Code != ErrCodeTokenExpired {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeTokenExpired)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	srv := testServer(t)
	first := login(t, srv, "member", "member-password")

	var resp sessionResponse
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/refresh", "", nil, &resp)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.AccessToken == first {
		t.Error("refresh returned the same access token")
	}
	if resp.State != "authenticated" {
		t.Errorf("state = %q, want authenticated", resp.State)
	}
}

func TestRefresh_WithoutSession(t *testing.T) {
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/refresh", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogout_EndsSessionAndRevokesTokens(t *testing.T) {
	srv := testServer(t)
	tok := login(t, srv, "member", "member-password")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/auth/logout", tok, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if srv.machine.State() != session.StateAnonymous {
		t.Errorf("machine state = %q, want anonymous", srv.machine.State())
	}

	// The server-side refresh token is gone with the session.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/auth/refresh", "", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", rec.Code)
	}
}

func TestAudit_TrailRecordsSessionEvents(t *testing.T) {
	srv := testServer(t)
	tok := login(t, srv, "admin", "admin-password")

	var result audit.ListResult
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit?action=login", tok, nil, &result)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if result.Total != 1 {
		t.Errorf("login audit entries = %d, want 1", result.Total)
	}
}

func TestAudit_RequiresPermission(t *testing.T) {
	srv := testServer(t)
	tok := login(t, srv, "member", "member-password")

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit", tok, nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

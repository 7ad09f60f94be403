package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/events"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/policy"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendOTP(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *captureMailer) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	app    *App
	rc     *policy.RouterConfig
	mail   *captureMailer
	events *events.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := conn.DB()
	// WebSocket handlers write presence from their own goroutine.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		JWT:         config.JWTConfig{Secret: "test-secret", Algorithm: "HS256", TTL: time.Hour},
		CORSOrigins: []string{"http://localhost:3000"},
	}
	m := metrics.New()
	mail := &captureMailer{codes: map[string]string{}}
	ev := &events.Memory{}
	rc, err := policy.NewRouterConfig(policy.Deps{
		DB:      conn,
		Config:  cfg,
		Hub:     realtime.NewHub(log, m),
		Mailer:  mail,
		Events:  ev,
		Metrics: m,
		Log:     log,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	return &testEnv{t: t, db: conn, app: NewApp(rc, m, cfg.CORSOrigins), rc: rc, mail: mail, events: ev}
}

// user seeds an active user and returns it with a bearer token.
func (e *testEnv) user(email string, role models.Role) (*models.User, string) {
	e.t.Helper()
	u := &models.User{
		Email:        email,
		PasswordHash: "x",
		FirstName:    strings.Split(email, "@")[0],
		Role:         role,
		Status:       models.UserActive,
		IsVerified:   true,
	}
	if err := e.db.Create(u).Error; err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	tok, err := e.rc.AuthService.Tokens.Issue(u.ID)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return u, tok
}

func (e *testEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr.Code, out
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		path string
		want int
	}{
		{"/", http.StatusOK},
		{"/health", http.StatusOK},
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/does-not-exist", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			env.app.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("GET %s = %d, want %d", tt.path, rr.Code, tt.want)
			}
		})
	}
	_, body := env.do(http.MethodGet, "/", "", nil)
	if body["message"] != "CRM API" || body["version"] != "test" {
		t.Fatalf("unexpected banner %v", body)
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	env := newTestEnv(t)
	creds := map[string]any{"email": "New@Example.com", "password": "secret1", "first_name": "New", "last_name": "User"}

	code, body := env.do(http.MethodPost, "/api/auth/register", "", creds)
	if code != http.StatusCreated {
		t.Fatalf("register = %d %v", code, body)
	}
	if code, _ := env.do(http.MethodPost, "/api/auth/register", "", creds); code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", code)
	}

	login := map[string]any{"email": "new@example.com", "password": "secret1"}
	if code, _ := env.do(http.MethodPost, "/api/auth/login", "", login); code != http.StatusForbidden {
		t.Fatalf("login before verify = %d, want 403", code)
	}

	otp := env.mail.code("new@example.com")
	if otp == "" {
		t.Fatal("no otp captured")
	}
	wrong := "x" + otp
	if code, _ := env.do(http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "new@example.com", "otp": wrong}); code != http.StatusBadRequest {
		t.Fatalf("wrong otp = %d, want 400", code)
	}
	code, body = env.do(http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "new@example.com", "otp": otp})
	if code != http.StatusOK || body["token_type"] != "bearer" {
		t.Fatalf("verify = %d %v", code, body)
	}
	if code, _ := env.do(http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "new@example.com", "otp": otp}); code != http.StatusBadRequest {
		t.Fatalf("second verify = %d, want 400", code)
	}

	if code, _ := env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "new@example.com", "password": "nope"}); code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d, want 401", code)
	}
	code, body = env.do(http.MethodPost, "/api/auth/login", "", login)
	if code != http.StatusOK {
		t.Fatalf("login = %d %v", code, body)
	}
	token, _ := body["access_token"].(string)

	code, body = env.do(http.MethodGet, "/api/auth/me", token, nil)
	if code != http.StatusOK || body["email"] != "new@example.com" || body["role"] != "EMPLOYEE" {
		t.Fatalf("me = %d %v", code, body)
	}
	if code, _ := env.do(http.MethodGet, "/api/auth/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("me anonymous = %d, want 401", code)
	}
	if code, _ := env.do(http.MethodGet, "/api/auth/me", "garbage", nil); code != http.StatusUnauthorized {
		t.Fatalf("me bad token = %d, want 401", code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": "not-an-email", "password": "123"})
	if code != http.StatusBadRequest {
		t.Fatalf("register = %d %v", code, body)
	}
}

func TestRolePermissions(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.user("admin@crm.test", models.RoleAdmin)
	_, manager := env.user("manager@crm.test", models.RoleManager)
	_, employee := env.user("employee@crm.test", models.RoleEmployee)

	newLead := func() string {
		code, body := env.do(http.MethodPost, "/api/leads", employee, map[string]any{
			"first_name": "Jane", "last_name": "Doe", "company": "Acme", "email": "jane@acme.test", "value": 1000,
		})
		if code != http.StatusCreated {
			t.Fatalf("create lead = %d %v", code, body)
		}
		return body["id"].(string)
	}

	id := newLead()
	if code, _ := env.do(http.MethodDelete, "/api/leads/"+id, employee, nil); code != http.StatusForbidden {
		t.Fatalf("employee delete lead = %d, want 403", code)
	}
	if code, _ := env.do(http.MethodDelete, "/api/leads/"+id, manager, nil); code != http.StatusOK {
		t.Fatalf("manager delete lead = %d, want 200", code)
	}
	if code, _ := env.do(http.MethodGet, "/api/leads/"+id, manager, nil); code != http.StatusNotFound {
		t.Fatalf("deleted lead = %d, want 404", code)
	}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"employee", employee, http.StatusForbidden},
		{"manager", manager, http.StatusForbidden},
		{"admin", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run("audit_logs_"+tt.name, func(t *testing.T) {
			if code, _ := env.do(http.MethodGet, "/api/audit-logs", tt.token, nil); code != tt.want {
				t.Fatalf("audit logs = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestLeadConversionOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	_, employee := env.user("rep@crm.test", models.RoleEmployee)

	code, lead := env.do(http.MethodPost, "/api/leads", employee, map[string]any{
		"first_name": "Jane", "last_name": "Doe", "company": "Acme", "email": "jane@acme.test", "value": 5000,
	})
	if code != http.StatusCreated {
		t.Fatalf("create lead = %d %v", code, lead)
	}
	id := lead["id"].(string)

	if code, _ := env.do(http.MethodPatch, "/api/leads/"+id, employee, map[string]any{"status": "CONVERTED"}); code != http.StatusBadRequest {
		t.Fatalf("patch to converted = %d, want 400", code)
	}

	code, res := env.do(http.MethodPost, "/api/leads/"+id+"/convert", employee, nil)
	if code != http.StatusOK {
		t.Fatalf("convert = %d %v", code, res)
	}
	for _, k := range []string{"account_id", "contact_id", "deal_id"} {
		if s, _ := res[k].(string); s == "" {
			t.Fatalf("missing %s in %v", k, res)
		}
	}
	if code, _ := env.do(http.MethodPost, "/api/leads/"+id+"/convert", employee, nil); code != http.StatusConflict {
		t.Fatalf("second convert = %d, want 409", code)
	}

	code, deal := env.do(http.MethodGet, "/api/deals/"+res["deal_id"].(string), employee, nil)
	if code != http.StatusOK || deal["name"] != "Acme - Doe Deal" || deal["stage"] != "QUALIFICATION" {
		t.Fatalf("deal = %d %v", code, deal)
	}

	code, stats := env.do(http.MethodGet, "/api/leads/stats/overview", employee, nil)
	if code != http.StatusOK || stats["total"] != float64(1) {
		t.Fatalf("stats = %d %v", code, stats)
	}
}

func TestUserUpdateRules(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.user("admin@crm.test", models.RoleAdmin)
	self, employee := env.user("emp@crm.test", models.RoleEmployee)
	other, _ := env.user("other@crm.test", models.RoleEmployee)

	tests := []struct {
		name  string
		token string
		id    string
		body  map[string]any
		want  int
	}{
		{"self profile", employee, self.ID, map[string]any{"first_name": "Emp"}, http.StatusOK},
		{"self role", employee, self.ID, map[string]any{"role": "ADMIN"}, http.StatusForbidden},
		{"other user", employee, other.ID, map[string]any{"first_name": "X"}, http.StatusForbidden},
		{"admin promotes", admin, other.ID, map[string]any{"role": "MANAGER"}, http.StatusOK},
		{"unknown user", admin, "00000000-0000-0000-0000-000000000000", map[string]any{"first_name": "X"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := env.do(http.MethodPatch, "/api/users/"+tt.id, tt.token, tt.body); code != tt.want {
				t.Fatalf("PATCH = %d, want %d (%v)", code, tt.want, body)
			}
		})
	}
}

func TestAccountDeleteRemovesContacts(t *testing.T) {
	env := newTestEnv(t)
	_, manager := env.user("manager@crm.test", models.RoleManager)

	code, acc := env.do(http.MethodPost, "/api/accounts", manager, map[string]any{"name": "Acme"})
	if code != http.StatusCreated {
		t.Fatalf("create account = %d %v", code, acc)
	}
	accID := acc["id"].(string)
	code, contact := env.do(http.MethodPost, "/api/contacts", manager, map[string]any{
		"first_name": "Bob", "last_name": "Smith", "email": "bob@acme.test", "account_id": accID,
	})
	if code != http.StatusCreated {
		t.Fatalf("create contact = %d %v", code, contact)
	}

	if code, _ := env.do(http.MethodDelete, "/api/accounts/"+accID, manager, nil); code != http.StatusOK {
		t.Fatalf("delete account = %d", code)
	}
	if code, _ := env.do(http.MethodGet, "/api/contacts/"+contact["id"].(string), manager, nil); code != http.StatusNotFound {
		t.Fatalf("contact after account delete = %d, want 404", code)
	}
	if code, _ := env.do(http.MethodDelete, "/api/accounts/"+accID, manager, nil); code != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", code)
	}
}

func TestNotificationsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	_, manager := env.user("manager@crm.test", models.RoleManager)
	rep, repToken := env.user("rep@crm.test", models.RoleEmployee)

	code, _ := env.do(http.MethodPost, "/api/leads", manager, map[string]any{
		"first_name": "Jane", "last_name": "Doe", "company": "Acme", "email": "jane@acme.test", "assigned_to_id": rep.ID,
	})
	if code != http.StatusCreated {
		t.Fatalf("create lead = %d", code)
	}

	code, body := env.do(http.MethodGet, "/api/notifications/unread-count", repToken, nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("unread count = %d %v", code, body)
	}
	code, body = env.do(http.MethodPost, "/api/notifications/read-all", repToken, nil)
	if code != http.StatusOK || body["updated"] != float64(1) {
		t.Fatalf("read all = %d %v", code, body)
	}
	_, body = env.do(http.MethodGet, "/api/notifications/unread-count", repToken, nil)
	if body["count"] != float64(0) {
		t.Fatalf("unread after read-all = %v", body)
	}
	if code, _ := env.do(http.MethodPatch, "/api/notifications/00000000-0000-0000-0000-000000000000/read", repToken, nil); code != http.StatusNotFound {
		t.Fatalf("mark unknown = %d, want 404", code)
	}
}

func TestActivityLinkRules(t *testing.T) {
	env := newTestEnv(t)
	_, employee := env.user("rep@crm.test", models.RoleEmployee)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"two links", map[string]any{"type": "CALL", "subject": "Intro", "account_id": "11111111-1111-1111-1111-111111111111", "lead_id": "22222222-2222-2222-2222-222222222222"}, http.StatusBadRequest},
		{"missing target", map[string]any{"type": "CALL", "subject": "Intro", "lead_id": "00000000-0000-0000-0000-000000000000"}, http.StatusBadRequest},
		{"unlinked", map[string]any{"type": "NOTE", "subject": "Memo"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := env.do(http.MethodPost, "/api/activities", employee, tt.body); code != tt.want {
				t.Fatalf("POST = %d, want %d (%v)", code, tt.want, body)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		origin    string
		wantCode  int
		wantAllow string
	}{
		{"http://localhost:3000", http.StatusNoContent, "http://localhost:3000"},
		{"http://evil.test", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			rr := httptest.NewRecorder()
			env.app.ServeHTTP(rr, req)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestRegisterRole(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		role     any
		want     int
		wantRole string
	}{
		{"default", nil, http.StatusCreated, "EMPLOYEE"},
		{"manager", "MANAGER", http.StatusCreated, "MANAGER"},
		{"admin refused", "ADMIN", http.StatusForbidden, ""},
		{"unknown role", "OWNER", http.StatusBadRequest, ""},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]any{
				"email": fmt.Sprintf("r%d@crm.test", i), "password": "secret1", "first_name": "R", "last_name": "User",
			}
			if tt.role != nil {
				body["role"] = tt.role
			}
			code, res := env.do(http.MethodPost, "/api/auth/register", "", body)
			if code != tt.want {
				t.Fatalf("register = %d, want %d (%v)", code, tt.want, res)
			}
			if tt.wantRole == "" {
				return
			}
			user, _ := res["user"].(map[string]any)
			if user["role"] != tt.wantRole {
				t.Fatalf("role = %v, want %s", user["role"], tt.wantRole)
			}
		})
	}
}

func TestSuspendedPendingUserCannotVerify(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.user("admin@crm.test", models.RoleAdmin)

	code, res := env.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "pending@crm.test", "password": "secret1", "first_name": "P", "last_name": "User",
	})
	if code != http.StatusCreated {
		t.Fatalf("register = %d %v", code, res)
	}
	id := res["user"].(map[string]any)["id"].(string)
	otp := env.mail.code("pending@crm.test")

	if code, body := env.do(http.MethodPatch, "/api/users/"+id, admin, map[string]any{"status": "SUSPENDED"}); code != http.StatusOK {
		t.Fatalf("suspend = %d %v", code, body)
	}
	var stored models.User
	if err := env.db.First(&stored, "id = ?", id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.OTP != nil {
		t.Fatal("pending code should be cleared once the account leaves INACTIVE")
	}

	if code, _ := env.do(http.MethodPost, "/api/auth/verify-email", "", map[string]any{"email": "pending@crm.test", "otp": otp}); code != http.StatusForbidden {
		t.Fatalf("verify suspended = %d, want 403", code)
	}
	if code, _ := env.do(http.MethodPost, "/api/auth/resend-otp", "", map[string]any{"email": "pending@crm.test"}); code != http.StatusForbidden {
		t.Fatalf("resend suspended = %d, want 403", code)
	}
	if err := env.db.First(&stored, "id = ?", id).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.Status != models.UserSuspended {
		t.Fatalf("status = %s, want SUSPENDED", stored.Status)
	}
}

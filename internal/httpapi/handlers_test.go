package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/prefs"
	"sekolahku.id/internal/stream"
)

// capturingDispatcher records dispatched codes so tests can submit them.
type capturingDispatcher struct {
	mu    sync.Mutex
	codes map[string]string
}

func (d *capturingDispatcher) Dispatch(_ context.Context, email, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.codes == nil {
		d.codes = make(map[string]string)
	}
	d.codes[email] = code
	return nil
}

func (d *capturingDispatcher) codeFor(email string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codes[email]
}

type apiClient struct {
	baseURL    string
	client     *http.Client
	dispatcher *capturingDispatcher
	t          *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	hash := func(password string) string {
		t.Helper()
		h, err := auth.HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		return h
	}

	users := auth.NewMemoryUserStore(
		auth.User{
			ID: "user-root", Name: "Root", Email: "root@school.test",
			Role: auth.RoleSuperAdmin, Status: auth.UserStatusActive,
			PasswordHash: hash("root-pass"),
		},
		auth.User{
			ID: "user-ops", Name: "Ops Admin", Email: "ops@school.test",
			Role: auth.RoleKeuangan, Status: auth.UserStatusActive,
			PasswordHash: hash("ops-pass"),
		},
	)
	dispatcher := &capturingDispatcher{}
	svc, err := auth.NewService(users, auth.NewMemorySessionStore(), dispatcher, "test-secret")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Dispose)

	prefsSvc := prefs.NewService(prefs.NewMemoryStore())
	api := New(svc, prefsSvc, stream.New(), ReadyProbe{}, "test", Options{
		RatePerMinute: 6000,
		MaxBodyBytes:  1 << 20,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL:    srv.URL,
		client:     srv.Client(),
		dispatcher: dispatcher,
		t:          t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// authenticate drives the full login + OTP flow and returns a bearer token.
func (c *apiClient) authenticate(email, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{"email": email, "password": password}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login status: %d", resp.StatusCode)
	}

	resp = c.post("/v1/auth/verify-otp", map[string]any{
		"email": email,
		"code":  c.dispatcher.codeFor(email),
	}, nil)
	payload := decode[sessionResponse](c.t, resp)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("verify status: %d (%+v)", resp.StatusCode, payload)
	}
	if payload.Token == "" {
		c.t.Fatal("no token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestLoginOTPFlow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "ops@school.test",
		"password": "ops-pass",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	state := decode[authStateResponse](t, resp)
	if state.Status != "pending_otp" {
		t.Fatalf("expected pending_otp, got %s", state.Status)
	}
	if state.User != nil {
		t.Fatal("user must not be exposed before verification")
	}

	// Wrong code first.
	code := api.dispatcher.codeFor("ops@school.test")
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	resp = api.post("/v1/auth/verify-otp", map[string]any{
		"email": "ops@school.test",
		"code":  wrong,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong code status: %d", resp.StatusCode)
	}
	failed := decode[sessionResponse](t, resp)
	if failed.Status != "pending_otp" {
		t.Fatalf("flow must stay pending after a wrong code, got %s", failed.Status)
	}

	// Correct code.
	resp = api.post("/v1/auth/verify-otp", map[string]any{
		"email": "ops@school.test",
		"code":  code,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status: %d", resp.StatusCode)
	}
	sess := decode[sessionResponse](t, resp)
	if sess.Status != "authenticated" || sess.User == nil {
		t.Fatalf("expected authenticated with user, got %+v", sess)
	}
	if sess.LandingPath != "/dashboard/keuangan" {
		t.Fatalf("landing path = %q", sess.LandingPath)
	}
	if sess.Token == "" {
		t.Fatal("no token issued")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "ops@school.test",
		"password": "wrong",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSessionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.authenticate("ops@school.test", "ops-pass")

	resp := api.get("/v1/me", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/v1/me status: %d", resp.StatusCode)
	}
	me := decode[auth.User](t, resp)
	if me.Email != "ops@school.test" {
		t.Fatalf("unexpected user %+v", me)
	}

	resp = api.get("/v1/auth/session", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/v1/auth/session status: %d", resp.StatusCode)
	}
	sess := decode[sessionResponse](t, resp)
	if sess.Status != "authenticated" || sess.LandingPath != "/dashboard/keuangan" {
		t.Fatalf("unexpected session response %+v", sess)
	}

	// Logout, then the token is dead.
	resp = api.post("/v1/auth/logout", nil, bearerHeader(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
	resp = api.get("/v1/me", nil, bearerHeader(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestMePermissions(t *testing.T) {
	api := newTestAPI(t)
	token := api.authenticate("ops@school.test", "ops-pass")

	resp := api.get("/v1/me/permissions", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("permissions status: %d", resp.StatusCode)
	}
	perms := decode[permissionsResponse](t, resp)
	if perms.Role != auth.RoleKeuangan {
		t.Fatalf("role = %s", perms.Role)
	}
	found := false
	for _, res := range perms.Resources {
		if res == auth.ResourceFinanceInvoices {
			found = true
		}
		if res == auth.ResourceLibraryCatalog {
			t.Fatal("finance admin must not see library resources")
		}
	}
	if !found {
		t.Fatalf("finance.invoices missing from %v", perms.Resources)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/v1/me", "/v1/me/permissions", "/v1/roles", "/v1/admin/users"} {
		resp := api.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
		}
	}
}

func TestAdminEndpointsRequirePermission(t *testing.T) {
	api := newTestAPI(t)
	opsToken := api.authenticate("ops@school.test", "ops-pass")

	resp := api.get("/v1/admin/users", nil, bearerHeader(opsToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("finance admin on admin surface: expected 403, got %d", resp.StatusCode)
	}

	rootToken := api.authenticate("root@school.test", "root-pass")
	resp = api.get("/v1/admin/users", nil, bearerHeader(rootToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("super admin list users: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 users, got %v", payload["items"])
	}
}

func TestRoleChangeRevokesTargetSession(t *testing.T) {
	api := newTestAPI(t)
	opsToken := api.authenticate("ops@school.test", "ops-pass")
	rootToken := api.authenticate("root@school.test", "root-pass")

	resp := api.do(http.MethodPut, "/v1/admin/users/user-ops/role",
		map[string]any{"role": "admin_jadwal"}, bearerHeader(rootToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("role change status: %d", resp.StatusCode)
	}
	changed := decode[auth.User](t, resp)
	if changed.Role != auth.RoleJadwal {
		t.Fatalf("role not changed: %+v", changed)
	}

	// The target's session no longer restores.
	resp = api.get("/v1/me", nil, bearerHeader(opsToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", resp.StatusCode)
	}
}

func TestSuspensionLocksAccount(t *testing.T) {
	api := newTestAPI(t)
	rootToken := api.authenticate("root@school.test", "root-pass")

	resp := api.do(http.MethodPut, "/v1/admin/users/user-ops/status",
		map[string]any{"status": "suspended"}, bearerHeader(rootToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status change: %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/login", map[string]any{
		"email":    "ops@school.test",
		"password": "ops-pass",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("suspended login: expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateUser(t *testing.T) {
	api := newTestAPI(t)
	rootToken := api.authenticate("root@school.test", "root-pass")

	resp := api.post("/v1/admin/users", map[string]any{
		"name":     "Librarian",
		"email":    "library@school.test",
		"password": "book-pass",
		"role":     "admin_perpustakaan",
	}, bearerHeader(rootToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status: %d", resp.StatusCode)
	}
	created := decode[auth.User](t, resp)
	if created.Role != auth.RolePerpustakaan || created.Status != auth.UserStatusActive {
		t.Fatalf("unexpected created user %+v", created)
	}

	// The new account can log in.
	token := api.authenticate("library@school.test", "book-pass")
	if token == "" {
		t.Fatal("new user could not authenticate")
	}
}

func TestThemeEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.authenticate("ops@school.test", "ops-pass")

	resp := api.get("/v1/me/theme", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("theme status: %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["theme"] != "light" {
		t.Fatalf("default theme = %q", body["theme"])
	}

	resp = api.do(http.MethodPut, "/v1/me/theme", map[string]any{"theme": "dark"}, bearerHeader(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set theme status: %d", resp.StatusCode)
	}

	resp = api.get("/v1/me/theme", nil, bearerHeader(token))
	body = decode[map[string]string](t, resp)
	if body["theme"] != "dark" {
		t.Fatalf("theme after update = %q", body["theme"])
	}

	resp = api.do(http.MethodPut, "/v1/me/theme", map[string]any{"theme": "sepia"}, bearerHeader(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown theme: expected 400, got %d", resp.StatusCode)
	}
}

func TestRolesEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.authenticate("ops@school.test", "ops-pass")

	resp := api.get("/v1/roles", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("roles status: %d", resp.StatusCode)
	}
	payload := decode[map[string][]auth.RoleDescriptor](t, resp)
	if len(payload["roles"]) != 6 {
		t.Fatalf("expected 6 role descriptors, got %d", len(payload["roles"]))
	}
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := api.get(path, nil, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d", path, resp.StatusCode)
		}
	}
}

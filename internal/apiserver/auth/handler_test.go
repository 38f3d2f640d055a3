package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sheet-insights/internal/shared/model"
)

// fakeAuthenticator 单账号内存实现
type fakeAuthenticator struct {
	admin    *model.Admin
	password string
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, username, password string) (*model.Admin, error) {
	if f.admin != nil && username == f.admin.Username && password == f.password {
		return f.admin, nil
	}
	return nil, ErrInvalidCredentials
}

func (f *fakeAuthenticator) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	if f.admin != nil && f.admin.ID == id {
		return f.admin, nil
	}
	return nil, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeAuthenticator, *fakeDenylist, Config) {
	t.Helper()
	cfg := testConfig()
	svc := &fakeAuthenticator{
		admin:    adminFixture("adm-1", model.AdminRoleAdmin, model.StatusActive),
		password: "secret1",
	}
	denylist := &fakeDenylist{revoked: map[string]bool{}}
	gate := NewGate(cfg, svc, denylist, nil, nil)
	return NewHandler(svc, cfg, denylist, gate), svc, denylist, cfg
}

func TestLoginSuccess(t *testing.T) {
	h, svc, _, cfg := newTestHandler(t)

	body := `{"username":"` + svc.admin.Username + `","password":"secret1"}`
	r := httptest.NewRequest("POST", "/api/v1/admin/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Login(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string       `json:"token"`
		Admin *model.Admin `json:"admin"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	claims, err := ParseToken(cfg, resp.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "adm-1" {
		t.Errorf("token subject = %q, want adm-1", claims.Subject)
	}
}

func TestLoginUniformFailureMessage(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)

	cases := []string{
		`{"username":"no_such_user","password":"secret1"}`,
		`{"username":"` + svc.admin.Username + `","password":"wrong"}`,
	}
	for _, body := range cases {
		r := httptest.NewRequest("POST", "/api/v1/admin/login", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.Login(w, r)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Invalid username or password.") {
			t.Errorf("body = %s, want uniform failure message", w.Body.String())
		}
	}
}

func TestLoginMissingFields(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	r := httptest.NewRequest("POST", "/api/v1/admin/login", strings.NewReader(`{"username":"x"}`))
	w := httptest.NewRecorder()
	h.Login(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	h, svc, denylist, cfg := newTestHandler(t)

	token, err := GenerateToken(cfg, svc.admin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, _ := ParseToken(cfg, token)

	r := httptest.NewRequest("POST", "/api/v1/admin/logout", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.Logout(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !denylist.IsRevoked(context.Background(), claims.ID) {
		t.Error("jti not in denylist after logout")
	}

	// 吊销后的令牌过不了门禁
	gate := NewGate(cfg, svc, denylist, nil, nil)
	protected := gate.Admin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r = httptest.NewRequest("GET", "/api/v1/admin/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	protected(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: status = %d, want 401", w.Code)
	}
}

func TestLogoutExpiredTokenNoDenylistEntry(t *testing.T) {
	h, svc, denylist, _ := newTestHandler(t)

	expiredCfg := Config{JWTSecret: testConfig().JWTSecret, TokenTTL: -time.Minute}
	token, _ := GenerateToken(expiredCfg, svc.admin)

	r := httptest.NewRequest("POST", "/api/v1/admin/logout", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.Logout(w, r)

	// 已过期令牌解析失败，直接 401，不写入名单
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(denylist.revoked) != 0 {
		t.Errorf("denylist = %v, want empty", denylist.revoked)
	}
}

func TestMe(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)

	r := httptest.NewRequest("GET", "/api/v1/admin/me", nil)
	r = r.WithContext(WithAuthAdmin(r.Context(), &AuthAdmin{
		ID: svc.admin.ID, Username: svc.admin.Username, Role: svc.admin.Role,
	}))
	w := httptest.NewRecorder()
	h.Me(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), svc.admin.Username) {
		t.Errorf("body missing username: %s", w.Body.String())
	}
}

package http

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"authweb/internal/domain"
	"authweb/internal/service"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	idByEmail    map[string]string
	idByUsername map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		idByEmail:    make(map[string]string),
		idByUsername: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.idByEmail[user.Email]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	if _, exists := m.idByUsername[user.Username]; exists {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	}
	m.usersByID[user.ID] = user
	m.idByEmail[user.Email] = user.ID
	m.idByUsername[user.Username] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.idByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) UpdateAvatar(_ context.Context, id, avatarPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.AvatarPath = avatarPath
	m.usersByID[id] = user
	return nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(plaintext string) (string, error) {
	return "fake:" + plaintext, nil
}

func (fakeHasher) Verify(encoded, plaintext string) (bool, error) {
	return encoded == "fake:"+plaintext, nil
}

const testTemplates = `
{{define "index.html"}}index{{end}}
{{define "register.html"}}register {{.error}}{{end}}
{{define "login.html"}}login {{.error}}{{end}}
{{define "dashboard.html"}}dashboard {{.username}} {{.avatar}}{{end}}
`

func setupWebRouter(t *testing.T, uploadDir string) (*gin.Engine, *mockUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMockUserRepo()
	sessions := service.NewStoreSessionManager(service.NewMemorySessionStore(), time.Hour)
	authSvc := service.NewAuthService(zap.NewNop(), repo, fakeHasher{}, sessions)

	authH := NewAuthHandler(zap.NewNop(), authSvc, uploadDir, time.Hour)
	pageH := NewPageHandler(zap.NewNop())

	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New("web").Parse(testTemplates)))
	registerRoutes(r, authH, pageH)
	return r, repo
}

func performForm(r http.Handler, method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func registerForm(email, username, password string) url.Values {
	return url.Values{
		"email":    {email},
		"username": {username},
		"password": {password},
	}
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatalf("expected session cookie in response")
	return nil
}

func TestRegister_SuccessRedirectsToLogin(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	rec := performForm(r, http.MethodPost, "/register", registerForm("a@x.com", "a", "pw123456"))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
}

func TestRegister_DuplicateReturns400(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	if rec := performForm(r, http.MethodPost, "/register", registerForm("a@x.com", "a", "pw123456")); rec.Code != http.StatusSeeOther {
		t.Fatalf("first register: expected 303, got %d", rec.Code)
	}

	rec := performForm(r, http.MethodPost, "/register", registerForm("A@X.com", "b", "pw123456"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already taken") {
		t.Fatalf("expected duplicate message, got %q", rec.Body.String())
	}
}

func TestRegister_InvalidFormReturns400(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	for _, form := range []url.Values{
		registerForm("", "a", "pw123456"),
		registerForm("not-an-email", "a", "pw123456"),
		registerForm("a@x.com", "", "pw123456"),
		registerForm("a@x.com", "a", ""),
		registerForm("a@x.com", "a", "short"),
	} {
		rec := performForm(r, http.MethodPost, "/register", form)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for %v, got %d", form, rec.Code)
		}
	}
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	if rec := performForm(r, http.MethodPost, "/register", registerForm("a@x.com", "a", "pw123456")); rec.Code != http.StatusSeeOther {
		t.Fatalf("register: expected 303, got %d", rec.Code)
	}

	unknown := performForm(r, http.MethodPost, "/login", url.Values{
		"email":    {"nobody@x.com"},
		"password": {"pw123456"},
	})
	wrongPass := performForm(r, http.MethodPost, "/login", url.Values{
		"email":    {"a@x.com"},
		"password": {"wrong"},
	})

	if unknown.Code != http.StatusBadRequest || wrongPass.Code != http.StatusBadRequest {
		t.Fatalf("expected 400/400, got %d/%d", unknown.Code, wrongPass.Code)
	}
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q", unknown.Body.String(), wrongPass.Body.String())
	}
	if !strings.Contains(unknown.Body.String(), loginFailedMessage) {
		t.Fatalf("expected uniform message, got %q", unknown.Body.String())
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	performForm(r, http.MethodPost, "/register", registerForm("a@x.com", "a", "pw123456"))
	rec := performForm(r, http.MethodPost, "/login", url.Values{
		"email":    {"a@x.com"},
		"password": {"pw123456"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", loc)
	}

	cookie := sessionCookieFrom(t, rec)
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be http-only")
	}
}

func TestDashboard_WithoutSessionRedirectsToLogin(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	rec := performForm(r, http.MethodGet, "/dashboard", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}

	// Cookie con token inventado: también redirige, nunca una página de error.
	rec = performForm(r, http.MethodGet, "/dashboard", nil, &http.Cookie{Name: sessionCookieName, Value: "forged"})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected forged session to redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	r, _ := setupWebRouter(t, "")

	if rec := performForm(r, http.MethodPost, "/register", registerForm("a@x.com", "a", "pw123456")); rec.Code != http.StatusSeeOther {
		t.Fatalf("register: expected 303, got %d", rec.Code)
	}

	login := performForm(r, http.MethodPost, "/login", url.Values{
		"email":    {"a@x.com"},
		"password": {"pw123456"},
	})
	if login.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", login.Code)
	}
	cookie := sessionCookieFrom(t, login)

	dashboard := performForm(r, http.MethodGet, "/dashboard", nil, cookie)
	if dashboard.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", dashboard.Code)
	}
	if !strings.Contains(dashboard.Body.String(), "a") {
		t.Fatalf("dashboard must show the username, got %q", dashboard.Body.String())
	}

	logout := performForm(r, http.MethodPost, "/logout", nil, cookie)
	if logout.Code != http.StatusSeeOther || logout.Header().Get("Location") != "/" {
		t.Fatalf("logout: expected 303 to /, got %d %q", logout.Code, logout.Header().Get("Location"))
	}

	// El token viejo quedó revocado server-side; reutilizarlo redirige.
	again := performForm(r, http.MethodGet, "/dashboard", nil, cookie)
	if again.Code != http.StatusSeeOther || again.Header().Get("Location") != "/login" {
		t.Fatalf("expected revoked session to redirect to /login, got %d %q", again.Code, again.Header().Get("Location"))
	}
}

func TestRegister_WithAvatarUpload(t *testing.T) {
	uploadDir := t.TempDir()
	r, repo := setupWebRouter(t, uploadDir)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"email":    "a@x.com",
		"username": "a",
		"password": "pw123456",
	} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := mw.CreateFormFile("avatar", "me.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}

	user, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !strings.HasPrefix(user.AvatarPath, "/uploads/") || !strings.HasSuffix(user.AvatarPath, ".png") {
		t.Fatalf("expected stored avatar reference, got %q", user.AvatarPath)
	}

	saved := filepath.Join(uploadDir, strings.TrimPrefix(user.AvatarPath, "/uploads/"))
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("read saved avatar: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected avatar content: %q", data)
	}
}

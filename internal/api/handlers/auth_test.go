package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/mailer"
	"github.com/complyard/complyard/internal/models"
	"gorm.io/gorm"
)

func newAuthHandler(t *testing.T, db *gorm.DB) (*AuthHandler, *auth.BasicAuthenticator) {
	t.Helper()
	authenticator := auth.NewBasicAuthenticator(db, "test-secret", time.Minute)
	rec := audit.NewRecorder(db)
	return NewAuthHandler(db, authenticator, mailer.LogMailer{}, rec, 60, false, "http://localhost:8470"), authenticator
}

func TestRegisterLoginVerifyFlow(t *testing.T) {
	db := setupTestDB(t)
	h, authenticator := newAuthHandler(t, db)

	// Register a new account.
	c, w := testContext(t, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"name":     "Dana",
		"email":    "dana@example.com",
		"password": "hunter22",
	}, 0)
	h.Register(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Login is blocked until the email is verified.
	c, w = testContext(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    "dana@example.com",
		"password": "hunter22",
	}, 0)
	h.Login(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before verification, got %d", w.Code)
	}
	var denial map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &denial); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if denial["requires_verification"] != true {
		t.Errorf("expected requires_verification flag, got %v", denial)
	}

	// Verify via the mailed token.
	var user models.User
	if err := db.Where("email = ?", "dana@example.com").First(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	verifyToken, err := authenticator.GenerateVerificationToken(&user)
	if err != nil {
		t.Fatalf("failed to generate verification token: %v", err)
	}
	c, w = testContext(t, http.MethodGet, "/api/v1/auth/verify?token="+verifyToken, nil, 0)
	h.VerifyEmail(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on verify, got %d: %s", w.Code, w.Body.String())
	}

	// Login now succeeds and returns a token.
	c, w = testContext(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    "dana@example.com",
		"password": "hunter22",
	}, 0)
	h.Login(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after verification, got %d: %s", w.Code, w.Body.String())
	}
	var resp auth.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal login response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a session token")
	}

	// The flow leaves REGISTER, VERIFY_EMAIL and LOGIN in the trail.
	rows := auditRows(t, db)
	actions := make([]string, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.Action)
	}
	want := []string{models.ActionRegister, models.ActionVerifyEmail, models.ActionLogin}
	if len(actions) != len(want) {
		t.Fatalf("expected actions %v, got %v", want, actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("expected actions %v, got %v", want, actions)
		}
	}
}

func TestLogin_UnknownEmailRecordsSystemAuditEntry(t *testing.T) {
	db := setupTestDB(t)
	h, _ := newAuthHandler(t, db)

	c, w := testContext(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    "ghost@example.com",
		"password": "whatever1",
	}, 0)
	h.Login(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	rows := auditRows(t, db)
	if len(rows) != 1 || rows[0].Action != models.ActionLoginFailed {
		t.Fatalf("expected one LOGIN_FAILED row, got %+v", rows)
	}
	if rows[0].UserID != nil {
		t.Error("failed login for unknown email must have a nil actor")
	}
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	db := setupTestDB(t)
	h, _ := newAuthHandler(t, db)

	body := map[string]any{"name": "Dana", "email": "dana@example.com", "password": "hunter22"}

	c, w := testContext(t, http.MethodPost, "/api/v1/auth/register", body, 0)
	h.Register(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	c, w = testContext(t, http.MethodPost, "/api/v1/auth/register", body, 0)
	h.Register(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	db := setupTestDB(t)
	h, _ := newAuthHandler(t, db)

	user := models.User{Name: "Dana", Email: "dana@example.com", PasswordHash: "x", EmailVerified: true}
	db.Create(&user)

	c, w := testContext(t, http.MethodGet, "/api/v1/auth/me", nil, user.ID)
	h.Me(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got models.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if got.Email != "dana@example.com" {
		t.Errorf("expected dana@example.com, got %q", got.Email)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
)

func TestCreateUser_RejectsUnknownRole(t *testing.T) {
	db := setupTestDB(t)
	h := NewUserHandler(db, audit.NewRecorder(db))

	c, w := testContext(t, http.MethodPost, "/api/v1/users", map[string]any{
		"name":     "Eve",
		"email":    "eve@example.com",
		"password": "hunter22",
		"role":     "superuser",
	}, 1)
	h.Create(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateUser_RoleChangeIsAuditedWithTransition(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewUserHandler(db, rec)

	user := models.User{Name: "Eve", Email: "eve@example.com", PasswordHash: "x", Role: models.RoleUser}
	db.Create(&user)

	c, w := testContext(t, http.MethodPatch, "/api/v1/users/1", map[string]any{"role": models.RoleModerator}, 1)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Update(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	rows := auditRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
	var details map[string]any
	if err := json.Unmarshal(rows[0].Details, &details); err != nil {
		t.Fatalf("failed to decode details: %v", err)
	}
	if details["role_from"] != models.RoleUser || details["role_to"] != models.RoleModerator {
		t.Errorf("expected role transition user->moderator, got %v", details)
	}
}

func TestDeleteUser_CannotDeleteSelf(t *testing.T) {
	db := setupTestDB(t)
	h := NewUserHandler(db, audit.NewRecorder(db))

	user := models.User{Name: "Admin", Email: "admin@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	db.Create(&user)

	c, w := testContext(t, http.MethodDelete, "/api/v1/users/1", nil, user.ID)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Delete(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when deleting own account, got %d", w.Code)
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("expected user to survive, found %d rows", count)
	}
}

package handlers

import (
	"net/http"
	"testing"

	"github.com/complyard/complyard/internal/audit"
	"github.com/gin-gonic/gin"
)

func TestCreateConfiguration_DuplicateKeyIsConflict(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewConfigurationHandler(db, rec)

	body := map[string]any{"key": "session.timeout", "value": "15m"}

	c, w := testContext(t, http.MethodPost, "/api/v1/configurations", body, 7)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	c, w = testContext(t, http.MethodPost, "/api/v1/configurations", body, 7)
	h.Create(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate key, got %d: %s", w.Code, w.Body.String())
	}

	// Only the successful create left an audit row.
	if rows := auditRows(t, db); len(rows) != 1 {
		t.Errorf("expected 1 audit row, got %d", len(rows))
	}
}

func TestUpdateConfiguration_KeyIsImmutable(t *testing.T) {
	db := setupTestDB(t)
	h := NewConfigurationHandler(db, audit.NewRecorder(db))

	c, w := testContext(t, http.MethodPost, "/api/v1/configurations", map[string]any{"key": "log.level", "value": "info"}, 7)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	// A patch naming only the key carries no updatable field.
	c, w = testContext(t, http.MethodPatch, "/api/v1/configurations/1", map[string]any{"key": "other.name"}, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Update(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when patching the key, got %d", w.Code)
	}
}

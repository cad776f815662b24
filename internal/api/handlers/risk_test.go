package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Risk{},
		&models.Configuration{},
		&models.TrainingCourse{},
		&models.TrainingQuiz{},
		&models.TrainingQuestion{},
		&models.QuizAttempt{},
		&models.QuizAnswer{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// testContext builds a Gin context carrying an authenticated principal's
// claims, the way the session middleware would.
func testContext(t *testing.T, method, target string, body any, userID uint) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")

	if userID != 0 {
		c.Set(auth.ClaimsContextKey, &auth.Claims{UserID: userID, Role: models.RoleUser})
	}
	return c, w
}

func auditRows(t *testing.T, db *gorm.DB) []models.AuditLog {
	t.Helper()
	var rows []models.AuditLog
	if err := db.Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load audit rows: %v", err)
	}
	return rows
}

func TestCreateRisk_RecordsAuditEntry(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	c, w := testContext(t, http.MethodPost, "/api/v1/risks", map[string]any{
		"title":    "Unencrypted backups",
		"severity": "high",
	}, 7)
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created models.Risk
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if created.ID == 0 || created.Title != "Unencrypted backups" {
		t.Errorf("unexpected created risk: %+v", created)
	}

	rows := auditRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
	entry := rows[0]
	if entry.Action != models.ActionCreate || entry.EntityType != "risk" {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
	if entry.UserID == nil || *entry.UserID != 7 {
		t.Errorf("expected actor 7, got %v", entry.UserID)
	}
	if entry.EntityID == nil || *entry.EntityID != created.ID {
		t.Errorf("expected entity id %d, got %v", created.ID, entry.EntityID)
	}
}

func TestUpdateRisk_AuditsChangedFieldsAndSeverityTransition(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	risk := models.Risk{Title: "Phishing exposure", Severity: "low"}
	db.Create(&risk)

	c, w := testContext(t, http.MethodPatch, "/api/v1/risks/1", map[string]any{
		"severity": "critical",
		"status":   "mitigating",
	}, 7)
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
	changed, ok := details["changed"].([]any)
	if !ok || len(changed) != 2 {
		t.Fatalf("expected 2 changed field names, got %v", details["changed"])
	}
	if details["severity_from"] != "low" || details["severity_to"] != "critical" {
		t.Errorf("expected severity transition low->critical, got %v", details)
	}
	// Field names only, never field values.
	if _, present := details["status"]; present {
		t.Error("details must not carry field values")
	}
}

func TestDeleteRisk_ReturnsDeletedRowAndAudits(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	risk := models.Risk{Title: "Vendor lock-in"}
	db.Create(&risk)

	c, w := testContext(t, http.MethodDelete, "/api/v1/risks/1", nil, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Delete(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var deleted models.Risk
	if err := json.Unmarshal(w.Body.Bytes(), &deleted); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if deleted.Title != "Vendor lock-in" {
		t.Errorf("expected the deleted row in the response, got %+v", deleted)
	}

	var count int64
	db.Model(&models.Risk{}).Count(&count)
	if count != 0 {
		t.Errorf("expected risk to be gone, found %d rows", count)
	}

	rows := auditRows(t, db)
	if len(rows) != 1 || rows[0].Action != models.ActionDelete {
		t.Fatalf("expected one DELETE audit row, got %+v", rows)
	}
}

func TestCreateRisk_SucceedsWhenAuditStoreIsDown(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	// Audit writes must never fail the mutation they describe.
	if err := db.Migrator().DropTable(&models.AuditLog{}); err != nil {
		t.Fatalf("failed to drop audit table: %v", err)
	}

	c, w := testContext(t, http.MethodPost, "/api/v1/risks", map[string]any{"title": "Shadow IT"}, 7)
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite audit failure, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&models.Risk{}).Count(&count)
	if count != 1 {
		t.Errorf("expected the risk to be persisted, found %d rows", count)
	}
	if rec.Dropped() != 1 {
		t.Errorf("expected dropped counter 1, got %d", rec.Dropped())
	}
}

func TestReads_LeaveNoAuditTrail(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	db.Create(&models.Risk{Title: "Credential reuse"})

	c, w := testContext(t, http.MethodGet, "/api/v1/risks", nil, 7)
	h.List(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	c, w = testContext(t, http.MethodGet, "/api/v1/risks/1", nil, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Get(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	c, w = testContext(t, http.MethodGet, "/api/v1/risks/search?q=credential", nil, 7)
	h.Search(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if rows := auditRows(t, db); len(rows) != 0 {
		t.Errorf("reads must not write audit rows, found %d", len(rows))
	}
}

func TestGetRisk_RepeatedReadsAreIdentical(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	db.Create(&models.Risk{Title: "Credential reuse", Severity: "medium"})

	c, w1 := testContext(t, http.MethodGet, "/api/v1/risks/1", nil, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Get(c)

	c, w2 := testContext(t, http.MethodGet, "/api/v1/risks/1", nil, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Get(c)

	if w1.Code != http.StatusOK || w2.Code != http.StatusOK {
		t.Fatalf("expected 200s, got %d and %d", w1.Code, w2.Code)
	}
	if !bytes.Equal(w1.Body.Bytes(), w2.Body.Bytes()) {
		t.Error("repeated reads must serialize identically")
	}
}

func TestDeleteRisk_MissingRowIsNotFoundAndUnaudited(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	c, w := testContext(t, http.MethodDelete, "/api/v1/risks/42", nil, 7)
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	h.Delete(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if rows := auditRows(t, db); len(rows) != 0 {
		t.Errorf("failed delete must not leave audit rows, found %d", len(rows))
	}
}

func TestListRisks_EmptyTableIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	c, w := testContext(t, http.MethodGet, "/api/v1/risks", nil, 7)
	h.List(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty list, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message in the body")
	}
}

func TestSearchRisks_MissingQueryIsBadRequest(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	c, w := testContext(t, http.MethodGet, "/api/v1/risks/search", nil, 7)
	h.Search(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing q, got %d", w.Code)
	}
}

func TestSearchRisks_NoMatchesIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	db.Create(&models.Risk{Title: "Credential reuse"})

	c, w := testContext(t, http.MethodGet, "/api/v1/risks/search?q=quantum", nil, 7)
	h.Search(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for no matches, got %d", w.Code)
	}
}

func TestUpdateRisk_EmptyPatchIsRejectedBeforeStoreWrite(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewRiskHandler(db, rec)

	db.Create(&models.Risk{Title: "Stale access reviews"})

	c, w := testContext(t, http.MethodPatch, "/api/v1/risks/1", map[string]any{}, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Update(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", w.Code)
	}
	if rows := auditRows(t, db); len(rows) != 0 {
		t.Errorf("rejected patch must not leave audit rows, found %d", len(rows))
	}
}

func TestUpdateRisk_UnknownFieldsOnlyIsRejected(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	db.Create(&models.Risk{Title: "Stale access reviews"})

	c, w := testContext(t, http.MethodPatch, "/api/v1/risks/1", map[string]any{"bogus": "x"}, 7)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	h.Update(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no updatable field is supplied, got %d", w.Code)
	}
}

func TestGetRisk_UnknownIDIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	c, w := testContext(t, http.MethodGet, "/api/v1/risks/99", nil, 7)
	c.Params = gin.Params{{Key: "id", Value: "99"}}
	h.Get(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateRisk_MissingTitleIsBadRequest(t *testing.T) {
	db := setupTestDB(t)
	h := NewRiskHandler(db, audit.NewRecorder(db))

	c, w := testContext(t, http.MethodPost, "/api/v1/risks", map[string]any{"severity": "low"}, 7)
	h.Create(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

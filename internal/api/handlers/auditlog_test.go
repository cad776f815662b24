package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/models"
)

func TestListAuditLogs_FiltersByAction(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewAuditLogHandler(db, rec)

	rec.Record(uintPtr(1), models.ActionCreate, "risk", uintPtr(1), nil, "")
	rec.Record(uintPtr(1), models.ActionDelete, "risk", uintPtr(1), nil, "")
	rec.Record(uintPtr(2), models.ActionCreate, "incident", uintPtr(3), nil, "")

	c, w := testContext(t, http.MethodGet, "/api/v1/audit-logs?action=CREATE", nil, 1)
	h.List(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var logs []models.AuditLog
	if err := json.Unmarshal(w.Body.Bytes(), &logs); err != nil {
		t.Fatalf("failed to unmarshal logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 CREATE rows, got %d", len(logs))
	}
	for _, entry := range logs {
		if entry.Action != models.ActionCreate {
			t.Errorf("filter leaked action %q", entry.Action)
		}
	}
}

func TestPurgeAuditLogs_LeavesAPurgeRecord(t *testing.T) {
	db := setupTestDB(t)
	rec := audit.NewRecorder(db)
	h := NewAuditLogHandler(db, rec)

	rec.Record(uintPtr(1), models.ActionCreate, "risk", uintPtr(1), nil, "")
	rec.Record(uintPtr(1), models.ActionUpdate, "risk", uintPtr(1), nil, "")

	c, w := testContext(t, http.MethodDelete, "/api/v1/audit-logs", nil, 1)
	h.Purge(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	rows := auditRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("expected only the purge record to remain, got %d rows", len(rows))
	}
	if rows[0].Action != models.ActionPurge {
		t.Errorf("expected %s, got %s", models.ActionPurge, rows[0].Action)
	}

	var details map[string]any
	if err := json.Unmarshal(rows[0].Details, &details); err != nil {
		t.Fatalf("failed to decode details: %v", err)
	}
	if details["purged"] != float64(2) {
		t.Errorf("expected purged count 2, got %v", details["purged"])
	}
}

func uintPtr(v uint) *uint { return &v }

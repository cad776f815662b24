package audit

import (
	"testing"

	"github.com/complyard/complyard/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.AuditLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func uintPtr(v uint) *uint { return &v }

func TestRecord_InsertsEntry(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db)

	entry := rec.Record(uintPtr(1), models.ActionCreate, "risk", uintPtr(42), map[string]any{"title": "Data leak"}, "req-1")
	if entry == nil {
		t.Fatal("expected a recorded entry")
	}
	if entry.ID == 0 {
		t.Error("expected entry to be assigned an id")
	}

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 audit row, got %d", count)
	}

	var stored models.AuditLog
	if err := db.First(&stored, entry.ID).Error; err != nil {
		t.Fatalf("failed to load stored entry: %v", err)
	}
	if stored.Action != models.ActionCreate || stored.EntityType != "risk" {
		t.Errorf("stored entry mismatch: %+v", stored)
	}
	if stored.EntityID == nil || *stored.EntityID != 42 {
		t.Errorf("expected entity id 42, got %v", stored.EntityID)
	}
	if stored.RequestID != "req-1" {
		t.Errorf("expected request id to be stored, got %q", stored.RequestID)
	}
}

func TestRecord_NilActorAllowedForSystemActions(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db)

	entry := rec.Record(nil, models.ActionLoginFailed, "user", nil, map[string]any{"email": "ghost@example.com"}, "")
	if entry == nil {
		t.Fatal("expected system action to be recorded")
	}
	if entry.UserID != nil {
		t.Error("expected nil actor id")
	}
}

func TestRecord_UnserializableDetailsDropsRecord(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db)

	// Channels cannot be marshaled to JSON.
	entry := rec.Record(uintPtr(1), models.ActionUpdate, "risk", uintPtr(1), make(chan int), "")
	if entry != nil {
		t.Fatal("expected record to be dropped")
	}

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no audit rows, got %d", count)
	}
	if rec.Dropped() != 1 {
		t.Errorf("expected dropped counter 1, got %d", rec.Dropped())
	}
}

func TestRecord_StoreFailureIsSwallowed(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db)

	// Simulate an unavailable audit store.
	if err := db.Migrator().DropTable(&models.AuditLog{}); err != nil {
		t.Fatalf("failed to drop audit table: %v", err)
	}

	entry := rec.Record(uintPtr(1), models.ActionDelete, "risk", uintPtr(5), nil, "")
	if entry != nil {
		t.Fatal("expected nil entry on store failure")
	}
	if rec.Dropped() != 1 {
		t.Errorf("expected dropped counter 1, got %d", rec.Dropped())
	}
}

func TestRecord_EmptyActionDropped(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db)

	if entry := rec.Record(uintPtr(1), "", "risk", nil, nil, ""); entry != nil {
		t.Fatal("expected record with empty action to be dropped")
	}
	if entry := rec.Record(uintPtr(1), models.ActionCreate, "", nil, nil, ""); entry != nil {
		t.Fatal("expected record with empty entity type to be dropped")
	}
}

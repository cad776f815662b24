package handlers

import (
	"net/http"
	"strconv"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultAuditLimit = 200

// AuditLogHandler serves the audit trail. Read access is admin-only, and the
// only write is the purge endpoint, which itself leaves an audit record.
type AuditLogHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewAuditLogHandler creates the audit log handler.
func NewAuditLogHandler(db *gorm.DB, rec *audit.Recorder) *AuditLogHandler {
	return &AuditLogHandler{db: db, rec: rec}
}

// List returns audit records, newest first, optionally filtered by ?user_id=,
// ?action= and ?entity_type=. ?limit= caps the page (default 200).
func (h *AuditLogHandler) List(c *gin.Context) {
	query := h.db.Model(&models.AuditLog{}).Preload("User")

	if uid := c.Query("user_id"); uid != "" {
		query = query.Where("user_id = ?", uid)
	}
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			Error(c, apperr.New(apperr.BadRequest, "invalid limit"))
			return
		}
		limit = parsed
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch audit logs", err))
		return
	}
	if len(logs) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no audit logs found"))
		return
	}
	c.JSON(http.StatusOK, logs)
}

// Get returns one audit record by id.
func (h *AuditLogHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var entry models.AuditLog
	if err := h.db.Preload("User").First(&entry, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "audit log not found"))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Purge deletes all audit records and writes a fresh record of the purge
// itself, so the trail is never fully silent about its own truncation.
func (h *AuditLogHandler) Purge(c *gin.Context) {
	result := h.db.Where("1 = 1").Delete(&models.AuditLog{})
	if result.Error != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to purge audit logs", result.Error))
		return
	}

	h.rec.Record(actorID(c), models.ActionPurge, "audit_log", nil,
		map[string]any{"purged": result.RowsAffected}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, gin.H{"purged": result.RowsAffected})
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ComplianceHandler serves compliance frameworks, their requirements, and the
// controls implementing them.
type ComplianceHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewComplianceHandler creates the compliance handler.
func NewComplianceHandler(db *gorm.DB, rec *audit.Recorder) *ComplianceHandler {
	return &ComplianceHandler{db: db, rec: rec}
}

var frameworkPatchFields = map[string]string{
	"name":        "name",
	"version":     "version",
	"description": "description",
	"owner_id":    "owner_id",
}

var requirementPatchFields = map[string]string{
	"code":        "code",
	"title":       "title",
	"description": "description",
	"status":      "status",
	"owner_id":    "owner_id",
}

var controlPatchFields = map[string]string{
	"name":             "name",
	"description":      "description",
	"implementation":   "implementation",
	"last_assessed_at": "last_assessed_at",
	"owner_id":         "owner_id",
}

// --- Frameworks ---

type createFrameworkRequest struct {
	Name        string `json:"name" binding:"required"`
	Version     string `json:"version"`
	Description string `json:"description"`
	OwnerID     *uint  `json:"owner_id"`
}

// ListFrameworks returns all compliance frameworks.
func (h *ComplianceHandler) ListFrameworks(c *gin.Context) {
	var frameworks []models.ComplianceFramework
	if err := h.db.Find(&frameworks).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch frameworks", err))
		return
	}
	if len(frameworks) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no compliance frameworks found"))
		return
	}
	c.JSON(http.StatusOK, frameworks)
}

// SearchFrameworks returns frameworks matching ?q= in name or description.
func (h *ComplianceHandler) SearchFrameworks(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var frameworks []models.ComplianceFramework
	if err := h.db.
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&frameworks).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search frameworks", err))
		return
	}
	if len(frameworks) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no compliance frameworks matching %q", q))
		return
	}
	c.JSON(http.StatusOK, frameworks)
}

// GetFramework returns one framework by id.
func (h *ComplianceHandler) GetFramework(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var framework models.ComplianceFramework
	if err := h.db.First(&framework, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance framework not found"))
		return
	}
	c.JSON(http.StatusOK, framework)
}

// CreateFramework inserts a new framework. Names are unique.
func (h *ComplianceHandler) CreateFramework(c *gin.Context) {
	var req createFrameworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "name is required"))
		return
	}

	framework := models.ComplianceFramework{
		Name:        req.Name,
		Version:     req.Version,
		Description: req.Description,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&framework).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Error(c, apperr.Newf(apperr.Conflict, "framework %q already exists", req.Name))
			return
		}
		Error(c, apperr.Wrap(apperr.Internal, "failed to create framework", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "compliance_framework", &framework.ID,
		map[string]any{"name": framework.Name}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, framework)
}

// UpdateFramework patches only the supplied fields.
func (h *ComplianceHandler) UpdateFramework(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	body, err := patchBody(c)
	if err != nil {
		Error(c, err)
		return
	}

	var framework models.ComplianceFramework
	if err := h.db.First(&framework, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance framework not found"))
		return
	}

	updates, changed := pickFields(body, frameworkPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&framework).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Error(c, apperr.New(apperr.Conflict, "framework name already in use"))
			return
		}
		Error(c, apperr.Wrap(apperr.Internal, "failed to update framework", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "compliance_framework", &framework.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, framework)
}

// DeleteFramework removes a framework and returns the deleted row.
func (h *ComplianceHandler) DeleteFramework(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var framework models.ComplianceFramework
	if err := h.db.First(&framework, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance framework not found"))
		return
	}

	if err := h.db.Delete(&framework).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete framework", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "compliance_framework", &framework.ID,
		map[string]any{"name": framework.Name}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, framework)
}

// --- Requirements ---

type createRequirementRequest struct {
	FrameworkID uint   `json:"framework_id" binding:"required"`
	Code        string `json:"code"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
	OwnerID     *uint  `json:"owner_id"`
}

// ListRequirements returns all requirements, optionally filtered by
// ?framework_id=.
func (h *ComplianceHandler) ListRequirements(c *gin.Context) {
	query := h.db.Model(&models.ComplianceRequirement{})
	if fid := c.Query("framework_id"); fid != "" {
		query = query.Where("framework_id = ?", fid)
	}

	var requirements []models.ComplianceRequirement
	if err := query.Find(&requirements).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch requirements", err))
		return
	}
	if len(requirements) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no compliance requirements found"))
		return
	}
	c.JSON(http.StatusOK, requirements)
}

// SearchRequirements returns requirements matching ?q= in code or title.
func (h *ComplianceHandler) SearchRequirements(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var requirements []models.ComplianceRequirement
	if err := h.db.
		Where("LOWER(code) LIKE ? OR LOWER(title) LIKE ?", pattern, pattern).
		Find(&requirements).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search requirements", err))
		return
	}
	if len(requirements) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no compliance requirements matching %q", q))
		return
	}
	c.JSON(http.StatusOK, requirements)
}

// GetRequirement returns one requirement by id.
func (h *ComplianceHandler) GetRequirement(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var requirement models.ComplianceRequirement
	if err := h.db.Preload("Framework").First(&requirement, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance requirement not found"))
		return
	}
	c.JSON(http.StatusOK, requirement)
}

// CreateRequirement inserts a new requirement under an existing framework.
func (h *ComplianceHandler) CreateRequirement(c *gin.Context) {
	var req createRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "framework_id and title are required"))
		return
	}

	var framework models.ComplianceFramework
	if err := h.db.First(&framework, req.FrameworkID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance framework not found"))
		return
	}

	requirement := models.ComplianceRequirement{
		FrameworkID: req.FrameworkID,
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&requirement).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create requirement", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "compliance_requirement", &requirement.ID,
		map[string]any{"title": requirement.Title, "framework_id": requirement.FrameworkID},
		middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, requirement)
}

// UpdateRequirement patches only the supplied fields.
func (h *ComplianceHandler) UpdateRequirement(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	body, err := patchBody(c)
	if err != nil {
		Error(c, err)
		return
	}

	var requirement models.ComplianceRequirement
	if err := h.db.First(&requirement, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance requirement not found"))
		return
	}

	updates, changed := pickFields(body, requirementPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&requirement).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update requirement", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "compliance_requirement", &requirement.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, requirement)
}

// DeleteRequirement removes a requirement and returns the deleted row.
func (h *ComplianceHandler) DeleteRequirement(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var requirement models.ComplianceRequirement
	if err := h.db.First(&requirement, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance requirement not found"))
		return
	}

	if err := h.db.Delete(&requirement).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete requirement", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "compliance_requirement", &requirement.ID,
		map[string]any{"title": requirement.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, requirement)
}

// --- Controls ---

type createControlRequest struct {
	RequirementID  uint   `json:"requirement_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	Implementation string `json:"implementation"`
	OwnerID        *uint  `json:"owner_id"`
}

// ListControls returns all controls, optionally filtered by ?requirement_id=.
func (h *ComplianceHandler) ListControls(c *gin.Context) {
	query := h.db.Model(&models.ComplianceControl{})
	if rid := c.Query("requirement_id"); rid != "" {
		query = query.Where("requirement_id = ?", rid)
	}

	var controls []models.ComplianceControl
	if err := query.Find(&controls).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch controls", err))
		return
	}
	if len(controls) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no compliance controls found"))
		return
	}
	c.JSON(http.StatusOK, controls)
}

// SearchControls returns controls matching ?q= in name or description.
func (h *ComplianceHandler) SearchControls(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var controls []models.ComplianceControl
	if err := h.db.
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&controls).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search controls", err))
		return
	}
	if len(controls) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no compliance controls matching %q", q))
		return
	}
	c.JSON(http.StatusOK, controls)
}

// GetControl returns one control by id.
func (h *ComplianceHandler) GetControl(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var control models.ComplianceControl
	if err := h.db.Preload("Requirement").First(&control, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance control not found"))
		return
	}
	c.JSON(http.StatusOK, control)
}

// CreateControl inserts a new control under an existing requirement.
func (h *ComplianceHandler) CreateControl(c *gin.Context) {
	var req createControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "requirement_id and name are required"))
		return
	}

	var requirement models.ComplianceRequirement
	if err := h.db.First(&requirement, req.RequirementID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance requirement not found"))
		return
	}

	control := models.ComplianceControl{
		RequirementID:  req.RequirementID,
		Name:           req.Name,
		Description:    req.Description,
		Implementation: req.Implementation,
		OwnerID:        req.OwnerID,
	}

	if err := h.db.Create(&control).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create control", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "compliance_control", &control.ID,
		map[string]any{"name": control.Name, "requirement_id": control.RequirementID},
		middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, control)
}

// UpdateControl patches only the supplied fields.
func (h *ComplianceHandler) UpdateControl(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	body, err := patchBody(c)
	if err != nil {
		Error(c, err)
		return
	}

	var control models.ComplianceControl
	if err := h.db.First(&control, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance control not found"))
		return
	}

	updates, changed := pickFields(body, controlPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&control).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update control", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "compliance_control", &control.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, control)
}

// DeleteControl removes a control and returns the deleted row.
func (h *ComplianceHandler) DeleteControl(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var control models.ComplianceControl
	if err := h.db.First(&control, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "compliance control not found"))
		return
	}

	if err := h.db.Delete(&control).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete control", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "compliance_control", &control.ID,
		map[string]any{"name": control.Name}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, control)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/models"
	"github.com/complyard/complyard/internal/rbac"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrainingHandler serves the security-awareness subsystem: courses, quizzes,
// questions and quiz attempts.
type TrainingHandler struct {
	db  *gorm.DB
	rec *audit.Recorder
}

// NewTrainingHandler creates the training handler.
func NewTrainingHandler(db *gorm.DB, rec *audit.Recorder) *TrainingHandler {
	return &TrainingHandler{db: db, rec: rec}
}

var coursePatchFields = map[string]string{
	"title":       "title",
	"description": "description",
	"content":     "content",
	"published":   "published",
	"owner_id":    "owner_id",
}

var quizPatchFields = map[string]string{
	"title":         "title",
	"passing_score": "passing_score",
}

// --- Courses ---

type createCourseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Published   bool   `json:"published"`
	OwnerID     *uint  `json:"owner_id"`
}

// ListCourses returns all training courses.
func (h *TrainingHandler) ListCourses(c *gin.Context) {
	var courses []models.TrainingCourse
	if err := h.db.Find(&courses).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch courses", err))
		return
	}
	if len(courses) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no training courses found"))
		return
	}
	c.JSON(http.StatusOK, courses)
}

// SearchCourses returns courses matching ?q= in title or description.
func (h *TrainingHandler) SearchCourses(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var courses []models.TrainingCourse
	if err := h.db.
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern).
		Find(&courses).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search courses", err))
		return
	}
	if len(courses) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no training courses matching %q", q))
		return
	}
	c.JSON(http.StatusOK, courses)
}

// GetCourse returns one course by id.
func (h *TrainingHandler) GetCourse(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var course models.TrainingCourse
	if err := h.db.First(&course, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "training course not found"))
		return
	}
	c.JSON(http.StatusOK, course)
}

// CreateCourse inserts a new course.
func (h *TrainingHandler) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "title is required"))
		return
	}

	course := models.TrainingCourse{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Published:   req.Published,
		OwnerID:     req.OwnerID,
	}

	if err := h.db.Create(&course).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create course", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "training_course", &course.ID,
		map[string]any{"title": course.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, course)
}

// UpdateCourse patches only the supplied fields.
func (h *TrainingHandler) UpdateCourse(c *gin.Context) {
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

	var course models.TrainingCourse
	if err := h.db.First(&course, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "training course not found"))
		return
	}

	updates, changed := pickFields(body, coursePatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&course).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update course", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "training_course", &course.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, course)
}

// DeleteCourse removes a course and returns the deleted row.
func (h *TrainingHandler) DeleteCourse(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var course models.TrainingCourse
	if err := h.db.First(&course, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "training course not found"))
		return
	}

	if err := h.db.Delete(&course).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete course", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "training_course", &course.ID,
		map[string]any{"title": course.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, course)
}

// --- Quizzes ---

type createQuizRequest struct {
	CourseID     uint   `json:"course_id" binding:"required"`
	Title        string `json:"title" binding:"required"`
	PassingScore int    `json:"passing_score"`
}

// ListQuizzes returns all quizzes, optionally filtered by ?course_id=.
func (h *TrainingHandler) ListQuizzes(c *gin.Context) {
	query := h.db.Model(&models.TrainingQuiz{})
	if cid := c.Query("course_id"); cid != "" {
		query = query.Where("course_id = ?", cid)
	}

	var quizzes []models.TrainingQuiz
	if err := query.Find(&quizzes).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch quizzes", err))
		return
	}
	if len(quizzes) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no quizzes found"))
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

// SearchQuizzes returns quizzes matching ?q= in the title.
func (h *TrainingHandler) SearchQuizzes(c *gin.Context) {
	q, err := searchQuery(c)
	if err != nil {
		Error(c, err)
		return
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var quizzes []models.TrainingQuiz
	if err := h.db.
		Where("LOWER(title) LIKE ?", pattern).
		Find(&quizzes).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to search quizzes", err))
		return
	}
	if len(quizzes) == 0 {
		Error(c, apperr.Newf(apperr.NotFound, "no quizzes matching %q", q))
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

// GetQuiz returns one quiz with its questions. Correct answers are stripped
// from the question payload so takers cannot read them off the wire.
func (h *TrainingHandler) GetQuiz(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var quiz models.TrainingQuiz
	if err := h.db.First(&quiz, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "quiz not found"))
		return
	}

	var questions []models.TrainingQuestion
	if err := h.db.Where("quiz_id = ?", quiz.ID).Find(&questions).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch questions", err))
		return
	}

	sanitized := make([]gin.H, 0, len(questions))
	for _, question := range questions {
		sanitized = append(sanitized, gin.H{
			"id":      question.ID,
			"quiz_id": question.QuizID,
			"prompt":  question.Prompt,
			"options": question.Options,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            quiz.ID,
		"course_id":     quiz.CourseID,
		"title":         quiz.Title,
		"passing_score": quiz.PassingScore,
		"questions":     sanitized,
	})
}

// CreateQuiz inserts a new quiz under an existing course.
func (h *TrainingHandler) CreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "course_id and title are required"))
		return
	}
	if req.PassingScore < 0 || req.PassingScore > 100 {
		Error(c, apperr.New(apperr.BadRequest, "passing_score must be between 0 and 100"))
		return
	}

	var course models.TrainingCourse
	if err := h.db.First(&course, req.CourseID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "training course not found"))
		return
	}

	quiz := models.TrainingQuiz{
		CourseID:     req.CourseID,
		Title:        req.Title,
		PassingScore: req.PassingScore,
	}

	if err := h.db.Create(&quiz).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create quiz", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "training_quiz", &quiz.ID,
		map[string]any{"title": quiz.Title, "course_id": quiz.CourseID}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, quiz)
}

// UpdateQuiz patches only the supplied fields.
func (h *TrainingHandler) UpdateQuiz(c *gin.Context) {
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

	var quiz models.TrainingQuiz
	if err := h.db.First(&quiz, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "quiz not found"))
		return
	}

	updates, changed := pickFields(body, quizPatchFields)
	if len(updates) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "no updatable fields in body"))
		return
	}

	if err := h.db.Model(&quiz).Updates(updates).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to update quiz", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionUpdate, "training_quiz", &quiz.ID,
		map[string]any{"changed": changed}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, quiz)
}

// DeleteQuiz removes a quiz and returns the deleted row.
func (h *TrainingHandler) DeleteQuiz(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var quiz models.TrainingQuiz
	if err := h.db.First(&quiz, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "quiz not found"))
		return
	}

	if err := h.db.Delete(&quiz).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete quiz", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "training_quiz", &quiz.ID,
		map[string]any{"title": quiz.Title}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, quiz)
}

// --- Questions ---

type createQuestionRequest struct {
	QuizID        uint     `json:"quiz_id" binding:"required"`
	Prompt        string   `json:"prompt" binding:"required"`
	Options       []string `json:"options" binding:"required,min=2"`
	CorrectOption int      `json:"correct_option"`
}

// CreateQuestion adds a multiple-choice question to a quiz.
func (h *TrainingHandler) CreateQuestion(c *gin.Context) {
	var req createQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "quiz_id, prompt and at least two options are required"))
		return
	}
	if req.CorrectOption < 0 || req.CorrectOption >= len(req.Options) {
		Error(c, apperr.New(apperr.BadRequest, "correct_option must index into options"))
		return
	}

	var quiz models.TrainingQuiz
	if err := h.db.First(&quiz, req.QuizID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "quiz not found"))
		return
	}

	options, err := json.Marshal(req.Options)
	if err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to encode options", err))
		return
	}

	question := models.TrainingQuestion{
		QuizID:        req.QuizID,
		Prompt:        req.Prompt,
		Options:       datatypes.JSON(options),
		CorrectOption: req.CorrectOption,
	}

	if err := h.db.Create(&question).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to create question", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionCreate, "training_question", &question.ID,
		map[string]any{"quiz_id": question.QuizID}, middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, question)
}

// DeleteQuestion removes a question and returns the deleted row.
func (h *TrainingHandler) DeleteQuestion(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		Error(c, err)
		return
	}

	var question models.TrainingQuestion
	if err := h.db.First(&question, id).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "question not found"))
		return
	}

	if err := h.db.Delete(&question).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to delete question", err))
		return
	}

	h.rec.Record(actorID(c), models.ActionDelete, "training_question", &question.ID,
		map[string]any{"quiz_id": question.QuizID}, middleware.GetRequestID(c))

	c.JSON(http.StatusOK, question)
}

// --- Attempts ---

type submitAttemptRequest struct {
	QuizID  uint              `json:"quiz_id" binding:"required"`
	Answers []submittedAnswer `json:"answers" binding:"required,min=1"`
}

type submittedAnswer struct {
	QuestionID     uint `json:"question_id" binding:"required"`
	SelectedOption int  `json:"selected_option"`
}

// SubmitAttempt grades a quiz submission and stores the attempt together with
// its per-question answers in one transaction. A partial attempt never
// reaches the store.
func (h *TrainingHandler) SubmitAttempt(c *gin.Context) {
	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, apperr.New(apperr.BadRequest, "quiz_id and at least one answer are required"))
		return
	}

	actor := actorID(c)
	if actor == nil {
		Error(c, apperr.New(apperr.Unauthorized, "authentication required"))
		return
	}

	var quiz models.TrainingQuiz
	if err := h.db.First(&quiz, req.QuizID).Error; err != nil {
		Error(c, apperr.New(apperr.NotFound, "quiz not found"))
		return
	}

	var questions []models.TrainingQuestion
	if err := h.db.Where("quiz_id = ?", quiz.ID).Find(&questions).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch questions", err))
		return
	}
	if len(questions) == 0 {
		Error(c, apperr.New(apperr.BadRequest, "quiz has no questions"))
		return
	}

	correctByID := make(map[uint]int, len(questions))
	for _, question := range questions {
		correctByID[question.ID] = question.CorrectOption
	}

	attempt := models.QuizAttempt{
		QuizID: quiz.ID,
		UserID: *actor,
	}

	correct := 0
	for _, answer := range req.Answers {
		want, ok := correctByID[answer.QuestionID]
		if !ok {
			Error(c, apperr.Newf(apperr.BadRequest, "question %d does not belong to quiz %d", answer.QuestionID, quiz.ID))
			return
		}
		hit := answer.SelectedOption == want
		if hit {
			correct++
		}
		attempt.Answers = append(attempt.Answers, models.QuizAnswer{
			QuestionID:     answer.QuestionID,
			SelectedOption: answer.SelectedOption,
			Correct:        hit,
		})
	}

	attempt.Score = correct * 100 / len(questions)
	attempt.Passed = attempt.Score >= quiz.PassingScore

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&attempt).Error
	})
	if err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to store attempt", err))
		return
	}

	h.rec.Record(actor, models.ActionCreate, "quiz_attempt", &attempt.ID,
		map[string]any{"quiz_id": quiz.ID, "score": attempt.Score, "passed": attempt.Passed},
		middleware.GetRequestID(c))

	c.JSON(http.StatusCreated, attempt)
}

// ListAttempts returns the caller's own attempts. Moderators may inspect any
// user's attempts via ?user_id=.
func (h *TrainingHandler) ListAttempts(c *gin.Context) {
	actor := actorID(c)
	if actor == nil {
		Error(c, apperr.New(apperr.Unauthorized, "authentication required"))
		return
	}

	target := *actor
	if uid := c.Query("user_id"); uid != "" {
		claims, err := auth.ClaimsFromContext(c)
		if err != nil {
			Error(c, apperr.New(apperr.Unauthorized, "authentication required"))
			return
		}
		allowed, err := rbac.Can(claims.Role, rbac.ResourceUsers, rbac.ActionRead)
		if err != nil {
			Error(c, apperr.Wrap(apperr.Internal, "authorization check failed", err))
			return
		}
		if !allowed {
			Error(c, apperr.New(apperr.Forbidden, "insufficient permissions"))
			return
		}
		parsed, err := strconv.ParseUint(uid, 10, 32)
		if err != nil {
			Error(c, apperr.New(apperr.BadRequest, "invalid user_id"))
			return
		}
		target = uint(parsed)
	}

	var attempts []models.QuizAttempt
	if err := h.db.Preload("Answers").
		Where("user_id = ?", target).
		Order("created_at DESC").
		Find(&attempts).Error; err != nil {
		Error(c, apperr.Wrap(apperr.Internal, "failed to fetch attempts", err))
		return
	}
	if len(attempts) == 0 {
		Error(c, apperr.New(apperr.NotFound, "no attempts found"))
		return
	}
	c.JSON(http.StatusOK, attempts)
}

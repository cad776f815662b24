package models

import (
	"time"

	"gorm.io/datatypes"
)

// TrainingCourse is a security-awareness course.
type TrainingCourse struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Published   bool      `gorm:"default:false" json:"published"`
	OwnerID     *uint     `gorm:"index" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TrainingQuiz belongs to a course and holds a passing threshold in percent.
type TrainingQuiz struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	CourseID     uint            `gorm:"index;not null" json:"course_id"`
	Course       *TrainingCourse `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Title        string          `gorm:"not null" json:"title"`
	PassingScore int             `gorm:"default:70" json:"passing_score"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TrainingQuestion is a multiple-choice question. Options are stored as a
// JSON array of strings; CorrectOption indexes into it.
type TrainingQuestion struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	QuizID        uint           `gorm:"index;not null" json:"quiz_id"`
	Prompt        string         `gorm:"not null" json:"prompt"`
	Options       datatypes.JSON `gorm:"type:text" json:"options"`
	CorrectOption int            `json:"correct_option"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// QuizAttempt records one user's submission of a quiz. The attempt and its
// answers are written in a single transaction.
type QuizAttempt struct {
	ID        uint         `gorm:"primarykey" json:"id"`
	QuizID    uint         `gorm:"index;not null" json:"quiz_id"`
	UserID    uint         `gorm:"index;not null" json:"user_id"`
	Score     int          `json:"score"`
	Passed    bool         `json:"passed"`
	Answers   []QuizAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// QuizAnswer is a single answer within an attempt.
type QuizAnswer struct {
	ID             uint `gorm:"primarykey" json:"id"`
	AttemptID      uint `gorm:"index;not null" json:"attempt_id"`
	QuestionID     uint `gorm:"index;not null" json:"question_id"`
	SelectedOption int  `json:"selected_option"`
	Correct        bool `json:"correct"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt holds the single stored competency-quiz result per user.
// A retake overwrites the row wholesale; while Passed is true no further
// attempt is accepted.
type QuizAttempt struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	UserID     string         `json:"user_id" gorm:"uniqueIndex;not null;size:36"`
	Score      int            `json:"score" gorm:"not null"`
	Passed     bool           `json:"passed" gorm:"not null"`
	Answers    datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	TakenAt    time.Time      `json:"taken_at" gorm:"not null;index"`
	CanRetakeAt *time.Time    `json:"can_retake_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// QuizQuestion is one entry of the immutable question table injected into
// the quiz service at construction time. Correct indexes the Options slice.
type QuizQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"-"`
}

// GradedAnswer is one graded submission entry, persisted in
// QuizAttempt.Answers.
type GradedAnswer struct {
	QuestionID int  `json:"question_id"`
	Answer     int  `json:"answer"`
	Correct    bool `json:"correct"`
}

package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	MinRating = 1
	MaxRating = 5
)

// CheckViolation rejects a row that breaks a table constraint.
type CheckViolation struct {
	Table      string
	Constraint string
}

func (e *CheckViolation) Error() string {
	return fmt.Sprintf("new row for relation %q violates check constraint %q", e.Table, e.Constraint)
}

// Review is one user's rating of another, usually after working together on a posting.
type Review struct {
	ID         string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	ReviewerID string    `json:"reviewer_id" gorm:"column:reviewer_id;size:36;not null;index"`
	RevieweeID string    `json:"reviewee_id" gorm:"column:reviewee_id;size:36;not null;index"`
	JobID      *string   `json:"job_id" gorm:"column:job_id;size:36"`
	Rating     int       `json:"rating" gorm:"column:rating;not null;index"`
	Comment    *string   `json:"comment" gorm:"column:comment"`
	IsPublic   bool      `json:"is_public" gorm:"column:is_public;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Review) TableName() string {
	return "reviews"
}

func (r *Review) BeforeCreate(_ *gorm.DB) error {
	assignID(&r.ID)
	if r.Rating < MinRating || r.Rating > MaxRating {
		return &CheckViolation{Table: "reviews", Constraint: "reviews_rating_check"}
	}
	if r.ReviewerID == r.RevieweeID {
		return &CheckViolation{Table: "reviews", Constraint: "reviews_not_self_check"}
	}
	return nil
}

// ReviewInsert is the row a reviewer submits.
type ReviewInsert struct {
	ReviewerID string  `json:"reviewer_id"`
	RevieweeID string  `json:"reviewee_id"`
	JobID      *string `json:"job_id,omitempty"`
	Rating     int     `json:"rating"`
	Comment    *string `json:"comment,omitempty"`
	IsPublic   bool    `json:"is_public"`
}

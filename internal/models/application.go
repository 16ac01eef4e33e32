package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "pending"
	ApplicationReviewed    ApplicationStatus = "reviewed"
	ApplicationShortlisted ApplicationStatus = "shortlisted"
	ApplicationAccepted    ApplicationStatus = "accepted"
	ApplicationRejected    ApplicationStatus = "rejected"
)

// ParseApplicationStatus accepts the known statuses case-insensitively.
func ParseApplicationStatus(value string) (ApplicationStatus, error) {
	status := ApplicationStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case ApplicationPending, ApplicationReviewed, ApplicationShortlisted, ApplicationAccepted, ApplicationRejected:
		return status, nil
	default:
		return "", fmt.Errorf("models: unknown application status %q", value)
	}
}

// Application is a job seeker's request to be hired for a posting.
type Application struct {
	ID            string            `json:"id" gorm:"column:id;primaryKey;size:36"`
	JobID         string            `json:"job_id" gorm:"column:job_id;size:36;not null;uniqueIndex:idx_applications_job_applicant"`
	ApplicantID   string            `json:"applicant_id" gorm:"column:applicant_id;size:36;not null;uniqueIndex:idx_applications_job_applicant;index"`
	CoverLetter   *string           `json:"cover_letter" gorm:"column:cover_letter"`
	ResumeURL     *string           `json:"resume_url" gorm:"column:resume_url;size:512"`
	Status        ApplicationStatus `json:"status" gorm:"column:status;size:16;not null;index"`
	EmployerNotes *string           `json:"employer_notes" gorm:"column:employer_notes"`
	AppliedAt     time.Time         `json:"applied_at" gorm:"column:applied_at;autoCreateTime"`
	ReviewedAt    *time.Time        `json:"reviewed_at" gorm:"column:reviewed_at"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Application) TableName() string {
	return "applications"
}

func (a *Application) BeforeCreate(_ *gorm.DB) error {
	assignID(&a.ID)
	if a.Status == "" {
		a.Status = ApplicationPending
	}
	return nil
}

// AfterCreate counts the application on its posting. A posting that does not exist rejects it.
func (a *Application) AfterCreate(tx *gorm.DB) error {
	result := tx.Model(&JobPosting{}).
		Where("id = ?", a.JobID).
		UpdateColumn("application_count", gorm.Expr("application_count + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrForeignKeyViolated
	}
	return nil
}

// ApplicationInsert is the row a job seeker submits.
type ApplicationInsert struct {
	JobID       string  `json:"job_id"`
	ApplicantID string  `json:"applicant_id"`
	CoverLetter *string `json:"cover_letter,omitempty"`
	ResumeURL   *string `json:"resume_url,omitempty"`
}

// ApplicationUpdate is a partial application change. Status, notes and the review time
// belong to the employer; the letter and resume to the applicant.
type ApplicationUpdate struct {
	Status        *ApplicationStatus `json:"status,omitempty"`
	EmployerNotes *string            `json:"employer_notes,omitempty"`
	ReviewedAt    *time.Time         `json:"reviewed_at,omitempty"`
	CoverLetter   *string            `json:"cover_letter,omitempty"`
	ResumeURL     *string            `json:"resume_url,omitempty"`
}

// ApplicationFilter narrows an application listing. Zero values mean "no constraint".
type ApplicationFilter struct {
	JobID       string
	ApplicantID string
	Status      ApplicationStatus
	Offset      int
	Limit       int
}

package models

import (
	"time"

	"gorm.io/gorm"
)

type JobType string

const (
	JobTypeFullTime  JobType = "full_time"
	JobTypePartTime  JobType = "part_time"
	JobTypeContract  JobType = "contract"
	JobTypeTemporary JobType = "temporary"
)

type JobStatus string

const (
	JobStatusDraft   JobStatus = "draft"
	JobStatusPending JobStatus = "pending"
	JobStatusActive  JobStatus = "active"
	JobStatusPaused  JobStatus = "paused"
	JobStatusExpired JobStatus = "expired"
	JobStatusFilled  JobStatus = "filled"
)

// JobCategory groups postings for browsing.
type JobCategory struct {
	ID          string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	Name        string    `json:"name" gorm:"column:name;size:120;not null;uniqueIndex"`
	Description *string   `json:"description" gorm:"column:description"`
	Icon        *string   `json:"icon" gorm:"column:icon;size:64"`
	IsActive    bool      `json:"is_active" gorm:"column:is_active;not null"`
	SortOrder   int       `json:"sort_order" gorm:"column:sort_order;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (JobCategory) TableName() string {
	return "job_categories"
}

func (c *JobCategory) BeforeCreate(_ *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// JobPosting is an employer's advertised position.
type JobPosting struct {
	ID               string     `json:"id" gorm:"column:id;primaryKey;size:36"`
	EmployerID       string     `json:"employer_id" gorm:"column:employer_id;size:36;not null;index"`
	CompanyID        *string    `json:"company_id" gorm:"column:company_id;size:36;index"`
	CategoryID       *string    `json:"category_id" gorm:"column:category_id;size:36;index"`
	Title            string     `json:"title" gorm:"column:title;size:200;not null"`
	Description      string     `json:"description" gorm:"column:description;not null"`
	Requirements     []string   `json:"requirements" gorm:"column:requirements;serializer:json"`
	Benefits         []string   `json:"benefits" gorm:"column:benefits;serializer:json"`
	JobType          JobType    `json:"job_type" gorm:"column:job_type;size:16;not null"`
	SalaryMin        *float64   `json:"salary_min" gorm:"column:salary_min"`
	SalaryMax        *float64   `json:"salary_max" gorm:"column:salary_max"`
	SalaryCurrency   string     `json:"salary_currency" gorm:"column:salary_currency;size:8;not null"`
	City             string     `json:"city" gorm:"column:city;size:120;not null;index"`
	Address          *string    `json:"address" gorm:"column:address"`
	IsRemote         bool       `json:"is_remote" gorm:"column:is_remote;not null"`
	IsUrgent         bool       `json:"is_urgent" gorm:"column:is_urgent;not null"`
	IsPremium        bool       `json:"is_premium" gorm:"column:is_premium;not null"`
	Status           JobStatus  `json:"status" gorm:"column:status;size:16;not null;index"`
	ExpiresAt        *time.Time `json:"expires_at" gorm:"column:expires_at"`
	ViewCount        int        `json:"view_count" gorm:"column:view_count;not null"`
	ApplicationCount int        `json:"application_count" gorm:"column:application_count;not null"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (JobPosting) TableName() string {
	return "job_postings"
}

func (j *JobPosting) BeforeCreate(_ *gorm.DB) error {
	assignID(&j.ID)
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.JobType == "" {
		j.JobType = JobTypePartTime
	}
	if j.SalaryCurrency == "" {
		j.SalaryCurrency = "TRY"
	}
	return nil
}

// JobFilter narrows the public job listing. Zero values mean "no constraint".
type JobFilter struct {
	CategoryID string
	City       string
	JobType    JobType
	RemoteOnly bool
	SalaryMin  float64
	SalaryMax  float64
	Offset     int
	Limit      int
}

// SavedJob bookmarks a posting for a user.
type SavedJob struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"column:user_id;size:36;not null;uniqueIndex:idx_saved_jobs_user_job"`
	JobID     string    `json:"job_id" gorm:"column:job_id;size:36;not null;uniqueIndex:idx_saved_jobs_user_job"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (SavedJob) TableName() string {
	return "saved_jobs"
}

func (s *SavedJob) BeforeCreate(_ *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

package models

// PlatformStats are the public headline counts.
type PlatformStats struct {
	TotalUsers     int `json:"total_users"`
	TotalEmployers int `json:"total_employers"`
	ActiveJobs     int `json:"active_jobs"`
	TotalCompanies int `json:"total_companies"`
}

// EmployerDashboard summarizes an employer's postings and the applications they drew.
type EmployerDashboard struct {
	JobPostings       []JobPosting `json:"job_postings"`
	TotalApplications int          `json:"total_applications"`
	ActiveJobs        int          `json:"active_jobs"`
	TotalJobs         int          `json:"total_jobs"`
}

// AdminDashboard lists what awaits moderation.
type AdminDashboard struct {
	PendingJobs      []JobPosting `json:"pending_jobs"`
	RecentUsers      []Profile    `json:"recent_users"`
	PendingEmployers []Profile    `json:"pending_employers"`
}

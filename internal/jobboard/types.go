// Package jobboard is the ledger access layer of the job board: it decodes
// on-chain objects into typed records, rebuilds the collections the ledger does
// not index, and builds unsigned contract calls.
package jobboard

import (
	"time"
)

// =============================================================================
// Contract layout
// =============================================================================

// Move modules of the job board package.
const (
	ModuleJobBoard        = "job_board"
	ModuleUserProfile     = "user_profile"
	ModuleEmployerProfile = "employer_profile"
)

// Move structs decoded by this package.
const (
	StructJobBoard         = "JobBoard"
	StructJob              = "Job"
	StructEmployerCap      = "EmployerCap"
	StructApplication      = "Application"
	StructApplicationKey   = "ApplicationKey"
	StructUserProfile      = "UserProfile"
	StructUserRegistry     = "UserRegistry"
	StructEmployerProfile  = "EmployerProfile"
	StructEmployerRegistry = "EmployerRegistry"
)

// =============================================================================
// Records
// =============================================================================

// Registry is an append-only list of record ids plus a stored count. The Board
// and both profile registries share this layout.
type Registry struct {
	ID    string   `json:"id"`
	Count uint64   `json:"count"`
	IDs   []string `json:"ids"`
}

// Job is a posted job.
type Job struct {
	ID                string  `json:"id"`
	Employer          string  `json:"employer"`
	EmployerProfileID string  `json:"employerProfileId"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Salary            *uint64 `json:"salary,omitempty"`
	ApplicationCount  uint64  `json:"applicationCount"`
	HiredCandidate    *string `json:"hiredCandidate,omitempty"`
	IsActive          bool    `json:"isActive"`
	Deadline          uint64  `json:"deadline"`
	CreatedAt         uint64  `json:"createdAt"`
}

// IsFilled reports whether a candidate has been hired.
func (j *Job) IsFilled() bool {
	return j.HiredCandidate != nil
}

// IsOpen reports whether the job takes applications, ignoring the deadline.
// A filled job is closed whatever its active flag says.
func (j *Job) IsOpen() bool {
	return j.IsActive && !j.IsFilled()
}

// IsExpired reports whether the deadline has passed at now.
func (j *Job) IsExpired(now time.Time) bool {
	return j.Deadline <= uint64(max(now.UnixMilli(), 0))
}

// AcceptsApplications combines IsOpen with the deadline.
func (j *Job) AcceptsApplications(now time.Time) bool {
	return j.IsOpen() && !j.IsExpired(now)
}

// DeadlineTime returns the deadline as a time.
func (j *Job) DeadlineTime() time.Time {
	return time.UnixMilli(int64(j.Deadline))
}

// UserProfile is a candidate profile.
type UserProfile struct {
	ID              string   `json:"id"`
	Owner           string   `json:"owner"`
	Name            string   `json:"name"`
	Bio             string   `json:"bio"`
	AvatarURL       string   `json:"avatarUrl"`
	Skills          []string `json:"skills"`
	ExperienceYears uint64   `json:"experienceYears"`
	PortfolioURL    string   `json:"portfolioUrl"`
	CreatedAt       uint64   `json:"createdAt"`
	UpdatedAt       uint64   `json:"updatedAt"`
}

// EmployerProfile is a company profile referenced by its jobs.
type EmployerProfile struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
	Website     string `json:"website"`
	Industry    string `json:"industry"`
	CreatedAt   uint64 `json:"createdAt"`
	UpdatedAt   uint64 `json:"updatedAt"`
}

// EmployerCap authorizes mutations of exactly one job.
type EmployerCap struct {
	ID    string `json:"id"`
	Owner string `json:"owner,omitempty"`
	JobID string `json:"jobId"`
}

// Application is stored as a dynamic field under its job, keyed by
// (Candidate, Index). Index is the candidate's zero-based sequence among their
// own submissions to the job.
type Application struct {
	ID            string `json:"id"`
	JobID         string `json:"jobId"`
	Candidate     string `json:"candidate"`
	Index         uint64 `json:"index"`
	UserProfileID string `json:"userProfileId"`
	CoverMessage  string `json:"coverMessage"`
	CVURL         string `json:"cvUrl"`
	AppliedAt     uint64 `json:"appliedAt"`
}

// Statistics aggregates the board. Partial is set when at least one total came
// from a registry's stored count instead of a complete scan.
type Statistics struct {
	TotalJobs         uint64 `json:"totalJobs"`
	ActiveJobs        uint64 `json:"activeJobs"`
	FilledJobs        uint64 `json:"filledJobs"`
	TotalApplications uint64 `json:"totalApplications"`
	TotalUsers        uint64 `json:"totalUsers"`
	TotalEmployers    uint64 `json:"totalEmployers"`
	Partial           bool   `json:"partial"`
}

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether the status ends the job's lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

const DefaultJobClass = "quick"

// JobMeta is the job's metadata bag with a fixed set of well-known fields.
// Class is written once at submission; Runner and ClaimedAt at claim time;
// Content, Error and GPU at completion. Updates go through Merge, which is
// strictly additive: a merge never clears a field written earlier.
type JobMeta struct {
	Class     string  `json:"class,omitempty"`
	Runner    *string `json:"runner,omitempty"`
	ClaimedAt *string `json:"claimedAt,omitempty"`
	Content   *string `json:"content,omitempty"`
	Error     *string `json:"error,omitempty"`
	GPU       *string `json:"gpu,omitempty"`
}

// Merge overlays the set fields of other onto m and returns the result.
// Unset fields of other leave the existing values untouched.
func (m JobMeta) Merge(other JobMeta) JobMeta {
	merged := m
	if other.Class != "" {
		merged.Class = other.Class
	}
	if other.Runner != nil {
		merged.Runner = other.Runner
	}
	if other.ClaimedAt != nil {
		merged.ClaimedAt = other.ClaimedAt
	}
	if other.Content != nil {
		merged.Content = other.Content
	}
	if other.Error != nil {
		merged.Error = other.Error
	}
	if other.GPU != nil {
		merged.GPU = other.GPU
	}
	return merged
}

type ReviewJob struct {
	ID        uuid.UUID           `gorm:"primaryKey;type:VARCHAR(255);"`
	RepoURL   string              `gorm:"not null"`
	Status    JobStatus           `gorm:"not null;type:VARCHAR(20);default:queued;index:review_jobs_status_created_at_idx,priority:1"`
	Meta      *JSONField[JobMeta] `gorm:"type:jsonb"`
	CreatedAt time.Time           `gorm:"not null;index:review_jobs_status_created_at_idx,priority:2"`
	UpdatedAt time.Time
}

type ReviewJobList []ReviewJob

func (j ReviewJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// NewReviewJob returns a queued job for repoURL tagged with class.
func NewReviewJob(repoURL string, class string) ReviewJob {
	if class == "" {
		class = DefaultJobClass
	}
	return ReviewJob{
		ID:      uuid.New(),
		RepoURL: repoURL,
		Status:  JobStatusQueued,
		Meta:    MakeJSONField(JobMeta{Class: class}),
	}
}

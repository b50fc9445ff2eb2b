// Package v1alpha1 holds the wire types of the review-queue HTTP API.
package v1alpha1

import "time"

// Job is the API representation of a review job.
type Job struct {
	Id        string    `json:"id"`
	RepoUrl   string    `json:"repoUrl"`
	Status    string    `json:"status"`
	Meta      JobMeta   `json:"meta"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobMeta mirrors the job's metadata bag. Fields are only present once the
// corresponding lifecycle step wrote them.
type JobMeta struct {
	Class     string  `json:"class,omitempty"`
	Runner    *string `json:"runner,omitempty"`
	ClaimedAt *string `json:"claimedAt,omitempty"`
	Content   *string `json:"content,omitempty"`
	Error     *string `json:"error,omitempty"`
	Gpu       *string `json:"gpu,omitempty"`
}

// SubmitJobRequest is the admin submission payload. Klass falls back to
// "quick" when absent.
type SubmitJobRequest struct {
	RepoUrl string `json:"repoUrl" validate:"required,repo_url"`
	Klass   string `json:"klass" validate:"omitempty,job_class"`
}

// ClaimJobRequest is the worker poll payload. An empty Classes list makes
// every queued job eligible.
type ClaimJobRequest struct {
	Gpu     *string  `json:"gpu" validate:"omitempty,max=255"`
	Classes []string `json:"classes" validate:"omitempty,dive,job_class"`
}

// CompleteJobRequest reports a terminal result for a claimed job. Status
// falls back to "done" when absent.
type CompleteJobRequest struct {
	JobId   string  `json:"jobId" validate:"required,uuid4"`
	Status  string  `json:"status" validate:"omitempty,job_status"`
	Content *string `json:"content"`
	Error   *string `json:"error"`
	Gpu     *string `json:"gpu" validate:"omitempty,max=255"`
}

type JobReply struct {
	Job *Job `json:"job"`
}

type JobListReply struct {
	Jobs []Job `json:"jobs"`
}

// Error is the generic error body.
type Error struct {
	Error string `json:"error"`
}

// ValidationError carries the per-field issues of a rejected payload.
type ValidationError struct {
	Error  string   `json:"error"`
	Issues []string `json:"issues"`
}

package events

// JobEvent is emitted on every job lifecycle transition.
type JobEvent struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Class  string `json:"class,omitempty"`
	Runner string `json:"runner,omitempty"`
}

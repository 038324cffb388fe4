package model

import "time"

// Job status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// Job kind constants. A batch submission produces one batch-member job per
// input image; a single submission produces one single job.
const (
	KindSingle      = "single"
	KindBatchMember = "batch_member"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:  true,
		StatusFailed:   true,
		StatusRejected: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusRejected:  true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Job represents one watermarking task submitted to the service.
type Job struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Kind       string     `json:"kind"`
	BatchID    string     `json:"batch_id,omitempty"`
	BatchIndex *int       `json:"batch_index,omitempty"`
	BytesIn    int        `json:"bytes_in"`
	BytesOut   *int       `json:"bytes_out,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

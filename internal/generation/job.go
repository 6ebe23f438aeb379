package generation

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/types"
)

// Kind identifies a job family
type Kind string

const (
	KindGenerateAll Kind = "generate_all"
	KindRegenerate  Kind = "regenerate"
)

// Job describes one generation job. A job starts as init and settles exactly once.
type Job struct {
	ID         uuid.UUID             `json:"jobId"`
	Kind       Kind                  `json:"kind"`
	UserID     uuid.UUID             `json:"-"`
	TargetID   int64                 `json:"targetId"`
	Status     types.OperationStatus `json:"status"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt *time.Time            `json:"finishedAt,omitempty"`
}

func newJob(kind Kind, userID uuid.UUID, targetID int64) *Job {
	return &Job{
		ID:        uuid.New(),
		Kind:      kind,
		UserID:    userID,
		TargetID:  targetID,
		Status:    types.StatusInit,
		StartedAt: time.Now(),
	}
}

// settled returns a finished copy of the job
func (j Job) settled(err error) Job {
	now := time.Now()
	j.FinishedAt = &now
	if err != nil {
		j.Status = types.StatusFailed
		j.Error = err.Error()
		return j
	}
	j.Status = types.StatusSuccess
	return j
}

// Elapsed returns the job duration, or the time since start for unsettled jobs
func (j Job) Elapsed() time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return time.Since(j.StartedAt)
}

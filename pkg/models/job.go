package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. Transitions are forward-only:
// queued -> running -> complete | failed.
const (
	JobStatusQueued   = "queued"
	JobStatusRunning  = "running"
	JobStatusComplete = "complete"
	JobStatusFailed   = "failed"
)

// Job tracks one asynchronous outfit-generation request. The API returns a
// job id on POST /api/v1/outfits; clients either stream
// GET /api/v1/outfits/{job_id}/stream or poll GET /api/v1/outfits/{job_id}
// until status is complete or failed.
type Job struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	ExpectedCount int       `json:"expected_count"`
	Results       []Outfit  `json:"results"`
	Reasoning     string    `json:"reasoning,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Terminal reports whether the job can no longer change.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusComplete || j.Status == JobStatusFailed
}

package domain

import (
	"errors"
	"time"
)

type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Error     Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case Pending, Completed, Error:
		return true
	}
	return false
}

// Terminal reports whether a stream should stop after emitting s.
func (s Status) Terminal() bool {
	return s == Completed || s == Error
}

var ErrJobNotFound = errors.New("job not found")

// Job is the registry's only record of a unit of work. Its status is never
// stored; it is derived from CreatedAt on every query.
type Job struct {
	ID        string
	CreatedAt time.Time
}

// StatusAt derives the job status at now for the given threshold.
func (j Job) StatusAt(now time.Time, threshold time.Duration) Status {
	if now.Sub(j.CreatedAt) >= threshold {
		return Completed
	}
	return Pending
}

// Report is the status object exchanged between registry, relay and
// subscribers.
type Report struct {
	JobID   string `json:"job_id,omitempty"`
	Result  Status `json:"result"`
	Message string `json:"message,omitempty"`
}

func ErrorReport(message string) Report {
	return Report{Result: Error, Message: message}
}

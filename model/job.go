package model

import (
	"time"
)

// AnalysisJob tracks one pipeline invocation from submission to a
// terminal state. A job is created pending, mutated exclusively by the
// single pipeline goroutine bound to it, and read concurrently by
// status polls.
type AnalysisJob struct {
	ID              string    `json:"id"`
	Tenant          string    `json:"tenant"`
	AbsorbentFileID string    `json:"absorbent_file_id"`
	AnalyteFileID   string    `json:"analyte_file_id"`
	Status          string    `json:"status"` // pending, processing, completed, failed
	Progress        int       `json:"progress"`
	Message         string    `json:"message"`
	Result          any       `json:"result,omitempty"`
	ErrorMsg        string    `json:"error_msg,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Job status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Terminal reports whether the job has reached a final state.
// Terminal states are immutable.
func (j *AnalysisJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// AnalysisSettings is the per-request configuration of a run. Zero
// fields are filled from the server-side analysis defaults.
type AnalysisSettings struct {
	Model        string  `json:"model"`
	Device       string  `json:"device"`
	Fmax         float64 `json:"fmax"`
	Steps        int     `json:"steps"`
	Separation   float64 `json:"separation"`
	Method       string  `json:"method"`
	Basis        string  `json:"basis"`
	Charge       int     `json:"charge"`
	Multiplicity int     `json:"multiplicity"`
}

// Merge fills zero fields from defaults and returns the result.
func (s AnalysisSettings) Merge(defaults AnalysisSettings) AnalysisSettings {
	if s.Model == "" {
		s.Model = defaults.Model
	}
	if s.Device == "" {
		s.Device = defaults.Device
	}
	if s.Fmax == 0 {
		s.Fmax = defaults.Fmax
	}
	if s.Steps == 0 {
		s.Steps = defaults.Steps
	}
	if s.Separation == 0 {
		s.Separation = defaults.Separation
	}
	if s.Method == "" {
		s.Method = defaults.Method
	}
	if s.Basis == "" {
		s.Basis = defaults.Basis
	}
	if s.Charge == 0 {
		s.Charge = defaults.Charge
	}
	if s.Multiplicity == 0 {
		s.Multiplicity = defaults.Multiplicity
	}
	return s
}

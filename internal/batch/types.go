// Package batch owns the batch transcription orchestrator: the per-file job
// state machine, the bounded-concurrency coordinator, cost aggregation and the
// progress event hub.
package batch

import (
	"time"

	"github.com/captionworks/backend/internal/metadata"
)

// State is a job's position in the pipeline. Transitions are monotonic and the
// four terminal states are final.
type State string

const (
	StatePending      State = "pending"
	StateExtracting   State = "extracting"
	StateTranscribing State = "transcribing"
	StateWriting      State = "writing"
	StateCompleted    State = "completed"
	StateSkipped      State = "skipped"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateSkipped, StateFailed, StateCancelled:
		return true
	}
	return false
}

// validTransition enforces the state machine edges:
// pending -> {skipped | extracting -> transcribing -> writing -> completed},
// any non-terminal -> {failed | cancelled}.
func validTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed || to == StateCancelled {
		return true
	}
	switch from {
	case StatePending:
		return to == StateSkipped || to == StateExtracting
	case StateExtracting:
		return to == StateTranscribing
	case StateTranscribing:
		return to == StateWriting
	case StateWriting:
		return to == StateCompleted
	}
	return false
}

// ErrorKind tags a failed job for programmatic handling.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindConfiguration     ErrorKind = "configuration"
	KindInput             ErrorKind = "input"
	KindProviderAuth      ErrorKind = "provider_auth"
	KindProviderQuota     ErrorKind = "provider_quota"
	KindProviderTransient ErrorKind = "provider_transient"
	KindNoSpeech          ErrorKind = "no_speech"
	KindPostProcessing    ErrorKind = "post_processing"
)

// Options is the immutable configuration shared by every job in a batch.
type Options struct {
	Model            string             `json:"model"`
	Language         string             `json:"language"`
	Diarize          bool               `json:"diarize"`
	ProfanityFilter  string             `json:"profanity_filter"`
	Force            bool               `json:"force"`
	GenerateKeyterms bool               `json:"generate_keyterms"`
	KeytermMerge     metadata.MergeMode `json:"keyterm_merge"`
}

// Job is the processing unit for one media file. All fields are guarded by the
// owning batch's mutex.
type Job struct {
	ID       string `json:"id"`
	BatchID  string `json:"batch_id"`
	Path     string `json:"path"`
	Identity string `json:"identity,omitempty"`

	State     State     `json:"state"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`

	// EstimatedCost comes from the probed duration before the provider call;
	// ActualCost from the duration the provider billed. A job that fails after
	// a billed call keeps its ActualCost.
	EstimatedCost   float64 `json:"estimated_cost"`
	ActualCost      float64 `json:"actual_cost"`
	DurationSeconds float64 `json:"duration_seconds"`
	BilledSeconds   float64 `json:"billed_seconds"`

	OutputPath     string `json:"output_path,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Counts aggregates terminal outcomes for a batch.
type Counts struct {
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Snapshot is a consistent view of a batch at one instant. Jobs appear in
// submission order regardless of execution order.
type Snapshot struct {
	ID              string    `json:"id"`
	Options         Options   `json:"options"`
	Jobs            []Job     `json:"jobs"`
	Counts          Counts    `json:"counts"`
	Cancelled       bool      `json:"cancelled"`
	Done            bool      `json:"done"`
	CostSoFar       float64   `json:"cost_so_far"`
	EstimatedCost   float64   `json:"estimated_cost"`
	DurationSoFar   float64   `json:"duration_so_far"`
	CreatedAt       time.Time `json:"created_at"`
}

// Event is one job transition published to progress subscribers. The pollable
// snapshot remains the source of truth; events are an optimization.
type Event struct {
	BatchID   string    `json:"batch_id"`
	JobID     string    `json:"job_id"`
	Path      string    `json:"path"`
	State     State     `json:"state"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Cost      float64   `json:"cost"`
	Terminal  bool      `json:"terminal"`
}

// Store persists batches and jobs; the coordinator writes through on every
// transition. Implementations must be safe for concurrent use.
type Store interface {
	SaveBatch(id string, opts Options, createdAt time.Time) error
	SaveJob(job Job) error
}

// NopStore discards all writes. Used by tests and by callers that only need
// in-memory batches.
type NopStore struct{}

func (NopStore) SaveBatch(string, Options, time.Time) error { return nil }
func (NopStore) SaveJob(Job) error                          { return nil }

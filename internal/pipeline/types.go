package pipeline

import (
	"time"

	"LayoutGolang/pkg/vision"
)

// RunInput carries everything one optimization run needs. OutputDir is the
// per-run directory; all artifacts land there so concurrent runs never share
// file names.
type RunInput struct {
	RunID         string
	OriginalPath  string
	Prompt        string
	AspectRatio   string
	NumCandidates int
	PollInterval  time.Duration
	Timeout       time.Duration
	OutputDir     string
	// Sequential runs the attempts one at a time instead of fanning out.
	// The summary is identical either way given the same generated bytes.
	Sequential bool
}

// CandidateOutcome is one surviving attempt: the generated image on disk and
// its validation, tagged with the ordinal position (0..N-1) in submission
// order.
type CandidateOutcome struct {
	Ordinal    int            `json:"index"`
	Path       string         `json:"path"`
	Validation *vision.Result `json:"validation"`
}

const (
	StageGeneration = "generation"
	StageValidation = "validation"

	KindGenerationFailed  = "generation_failed"
	KindGenerationTimeout = "generation_timeout"
	KindValidationError   = "validation_error"
)

// AttemptFailure records one excluded attempt. Path is set when the image
// was saved but validation rejected it.
type AttemptFailure struct {
	Ordinal int    `json:"index"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Reason  string `json:"error"`
	Path    string `json:"path,omitempty"`
}

// SelectionSummary is the terminal record of a run: the original's
// validation, every attempt in ordinal order (survivors and failures), and
// exactly one winner. It is only ever produced with a winner; an all-failed
// run returns an error instead.
type SelectionSummary struct {
	RunID           string             `json:"run_id"`
	Prompt          string             `json:"prompt"`
	AspectRatio     string             `json:"aspect_ratio"`
	InputImage      string             `json:"input_image"`
	Original        *vision.Result     `json:"original"`
	Candidates      []CandidateOutcome `json:"candidates"`
	Failures        []AttemptFailure   `json:"failed_attempts"`
	SelectedOrdinal int                `json:"selected_index"`
	SelectedPath    string             `json:"selected_path"`
	Reason          string             `json:"selection_reason"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     time.Time          `json:"completed_at"`
	SummaryPath     string             `json:"-"`
}

type EventType string

const (
	EventRunStarted         EventType = "run_started"
	EventOriginalValidated  EventType = "original_validated"
	EventCandidateSubmitted EventType = "candidate_submitted"
	EventCandidateGenerated EventType = "candidate_generated"
	EventCandidateValidated EventType = "candidate_validated"
	EventCandidateFailed    EventType = "candidate_failed"
	EventSelectionMade      EventType = "selection_made"
	EventRunFailed          EventType = "run_failed"
)

// Event is one progress notification. Ordinal is -1 for run-level events.
type Event struct {
	RunID   string    `json:"run_id"`
	Type    EventType `json:"type"`
	Ordinal int       `json:"index"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

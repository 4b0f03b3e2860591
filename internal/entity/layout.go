package entity

import "time"

type LayoutRun struct {
	ID                 string    `db:"id"`
	Prompt             string    `db:"prompt"`
	AspectRatio        string    `db:"aspect_ratio"`
	OriginalPath       string    `db:"original_path"`
	OriginalShapeCount int       `db:"original_shape_count"`
	OriginalEmptyPct   float64   `db:"original_empty_pct"`
	NumCandidates      int       `db:"num_candidates"`
	SelectedOrdinal    int       `db:"selected_ordinal"`
	SelectedPath       string    `db:"selected_path"`
	SelectionReason    string    `db:"selection_reason"`
	SummaryPath        string    `db:"summary_path"`
	WinnerURL          string    `db:"winner_url"`
	Status             string    `db:"status"`
	RequestedBy        string    `db:"requested_by"`
	StartedAt          time.Time `db:"started_at"`
	CompletedAt        time.Time `db:"completed_at"`
	CreatedAt          time.Time `db:"created_at"`
}

type LayoutCandidate struct {
	ID            string    `db:"id"`
	RunID         string    `db:"run_id"`
	Ordinal       int       `db:"ordinal"`
	Path          string    `db:"path"`
	ShapeCount    int       `db:"shape_count"`
	EmptySpacePct float64   `db:"empty_space_pct"`
	Status        string    `db:"status"`
	FailStage     string    `db:"fail_stage"`
	FailReason    string    `db:"fail_reason"`
	CreatedAt     time.Time `db:"created_at"`
}

type RunStatus uint8

const (
	RunStatusUnknown   RunStatus = 0
	RunStatusRunning   RunStatus = 1
	RunStatusCompleted RunStatus = 2
	RunStatusFailed    RunStatus = 3
)

var RunStatusMap = map[RunStatus]string{
	RunStatusRunning:   "running",
	RunStatusCompleted: "completed",
	RunStatusFailed:    "failed",
}

func (s RunStatus) String() string {
	return RunStatusMap[s]
}

func (s RunStatus) Value() uint8 {
	return uint8(s)
}

const (
	CandidateStatusValidated         = "validated"
	CandidateStatusGenerationFailed  = "generation_failed"
	CandidateStatusGenerationTimeout = "generation_timeout"
	CandidateStatusValidationError   = "validation_error"
)

type OperatorData struct {
	ID   string
	Name string
}

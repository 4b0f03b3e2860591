package layout

type OptimizeRequest struct {
	Prompt        string `json:"prompt" form:"prompt"`
	AspectRatio   string `json:"aspect_ratio" form:"aspect_ratio" validate:"omitempty,aspect_ratio"`
	NumCandidates int    `json:"num_candidates" form:"num_candidates" validate:"omitempty,min=1,max=10"`
	// Sleep and Timeout are the per-candidate polling knobs, in seconds.
	// Zero means the generation client defaults (0.75s / 300s).
	Sleep         float64 `json:"sleep" form:"sleep" validate:"omitempty,gt=0,max=60"`
	Timeout       float64 `json:"timeout" form:"timeout" validate:"omitempty,gt=0,max=900"`
	DescribeScene bool    `json:"describe_scene" form:"describe_scene"`
	Sequential    bool    `json:"sequential" form:"sequential"`
}

type ShapeResponse struct {
	Label  int    `json:"label"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Area   int    `json:"area_px"`
	Color  string `json:"color_rgb"`
}

type ValidationResponse struct {
	ShapeCount    int             `json:"shape_count"`
	EmptySpacePct float64         `json:"empty_space_pct"`
	Shapes        []ShapeResponse `json:"shapes,omitempty"`
	MaskURL       string          `json:"mask_url,omitempty"`
	OverlayURL    string          `json:"overlay_url,omitempty"`
	ReportURL     string          `json:"report_url,omitempty"`
}

type CandidateResponse struct {
	Index         int     `json:"index"`
	ImageURL      string  `json:"image_url"`
	ShapeCount    int     `json:"shape_count"`
	EmptySpacePct float64 `json:"empty_space_pct"`
}

type FailureResponse struct {
	Index int    `json:"index"`
	Stage string `json:"stage"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type OptimizeResponse struct {
	RunID           string              `json:"run_id"`
	Status          string              `json:"status"`
	Prompt          string              `json:"prompt"`
	AspectRatio     string              `json:"aspect_ratio"`
	Description     string              `json:"description,omitempty"`
	Original        ValidationResponse  `json:"original"`
	Candidates      []CandidateResponse `json:"candidates"`
	Failures        []FailureResponse   `json:"failed_attempts,omitempty"`
	SelectedIndex   int                 `json:"selected_index"`
	SelectedURL     string              `json:"selected_url"`
	SelectionReason string              `json:"selection_reason"`
	WinnerMirrorURL string              `json:"winner_mirror_url,omitempty"`
	SummaryURL      string              `json:"summary_url,omitempty"`
	StartedAt       string              `json:"started_at"`
	CompletedAt     string              `json:"completed_at"`
}

type RunResponse struct {
	RunID              string `json:"run_id"`
	Status             string `json:"status"`
	Prompt             string `json:"prompt"`
	AspectRatio        string `json:"aspect_ratio"`
	OriginalShapeCount int    `json:"original_shape_count"`
	SelectedIndex      int    `json:"selected_index"`
	SelectionReason    string `json:"selection_reason"`
	WinnerURL          string `json:"winner_url,omitempty"`
	RequestedBy        string `json:"requested_by,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type RunDetailResponse struct {
	RunResponse
	OriginalEmptyPct float64             `json:"original_empty_pct"`
	NumCandidates    int                 `json:"num_candidates"`
	SelectedPath     string              `json:"selected_path,omitempty"`
	SummaryPath      string              `json:"summary_path,omitempty"`
	Candidates       []CandidateResponse `json:"candidates"`
	Failures         []FailureResponse   `json:"failed_attempts,omitempty"`
	StartedAt        string              `json:"started_at"`
	CompletedAt      string              `json:"completed_at"`
}

type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Total int           `json:"total"`
}

type RunStatusResponse struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	Detail    string `json:"detail,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

package vision

// Box is an axis-aligned bounding box in pixel coordinates, relative to the
// top-left corner of the analyzed image.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Shape is one detected rectangular foreground region. Labels start at 1 and
// follow scan order (top to bottom, left to right), so they are stable for
// identical input bytes.
type Shape struct {
	Label     int    `json:"label"`
	Bounds    Box    `json:"bounds"`
	Area      int    `json:"area_px"`
	MeanColor string `json:"color_rgb"`
}

// Result holds everything measured from a single image. ShapeCount and
// EmptySpacePct are derived from the same occupancy mask, so a layout with
// more accepted shapes always reports less empty space. Artifact paths are
// empty until WriteArtifacts runs.
type Result struct {
	ShapeCount     int     `json:"shape_count"`
	EmptySpacePct  float64 `json:"empty_space_pct"`
	Shapes         []Shape `json:"shapes"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	OccupiedPixels int     `json:"occupied_pixels"`
	TotalPixels    int     `json:"total_pixels"`
	MaskPath       string  `json:"mask_path,omitempty"`
	OverlayPath    string  `json:"overlay_path,omitempty"`
	ReportPath     string  `json:"report_path,omitempty"`

	occupied []bool
}

// Subject describes one detected block in prompt-friendly terms.
type Subject struct {
	Type  string `json:"type"`
	Color string `json:"color"`
	Size  string `json:"size"`
	Area  int    `json:"area"`
}

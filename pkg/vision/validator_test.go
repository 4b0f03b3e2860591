package vision

import (
	"bytes"
	"encoding/csv"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var (
	white  = color.RGBA{255, 255, 255, 255}
	black  = color.RGBA{0, 0, 0, 255}
	red    = color.RGBA{255, 0, 0, 255}
	green  = color.RGBA{0, 255, 0, 255}
	blue   = color.RGBA{0, 0, 255, 255}
	orange = color.RGBA{255, 165, 0, 255}
)

type rectSpec struct {
	x, y, w, h int
	c          color.RGBA
}

func drawLayout(w, h int, bg color.RGBA, rects []rectSpec) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	for _, r := range rects {
		for y := r.y; y < r.y+r.h; y++ {
			for x := r.x; x < r.x+r.w; x++ {
				img.SetRGBA(x, y, r.c)
			}
		}
	}
	return img
}

// drawTriangle fills a right triangle so its bounding-box fill ratio is
// roughly 0.5, well under the rectangularity threshold.
func drawTriangle(img *image.RGBA, x0, y0, size int, c color.RGBA) {
	for row := 0; row < size; row++ {
		for col := 0; col <= row; col++ {
			img.SetRGBA(x0+col, y0+row, c)
		}
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateCountsAndEmptySpace(t *testing.T) {
	tests := []struct {
		name      string
		bg        color.RGBA
		rects     []rectSpec
		wantCount int
		wantEmpty float64
	}{
		{
			name:      "blank canvas",
			bg:        white,
			rects:     nil,
			wantCount: 0,
			wantEmpty: 100,
		},
		{
			name: "three blocks on white",
			bg:   white,
			rects: []rectSpec{
				{50, 40, 120, 100, red},
				{300, 200, 200, 150, green},
				{600, 450, 100, 80, blue},
			},
			wantCount: 3,
			wantEmpty: 100 * (1 - float64(120*100+200*150+100*80)/float64(800*600)),
		},
		{
			name: "light blocks on dark canvas",
			bg:   black,
			rects: []rectSpec{
				{100, 100, 150, 150, white},
				{480, 320, 180, 120, orange},
			},
			wantCount: 2,
			wantEmpty: 100 * (1 - float64(150*150+180*120)/float64(800*600)),
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Validate(drawLayout(800, 600, tt.bg, tt.rects))
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if res.ShapeCount != tt.wantCount {
				t.Errorf("ShapeCount = %d, want %d", res.ShapeCount, tt.wantCount)
			}
			if math.Abs(res.EmptySpacePct-tt.wantEmpty) > 0.01 {
				t.Errorf("EmptySpacePct = %.4f, want %.4f", res.EmptySpacePct, tt.wantEmpty)
			}
			if res.EmptySpacePct < 0 || res.EmptySpacePct > 100 {
				t.Errorf("EmptySpacePct = %.4f outside [0,100]", res.EmptySpacePct)
			}
		})
	}
}

func TestValidateFiltersNoise(t *testing.T) {
	e := New()

	t.Run("below minimum area", func(t *testing.T) {
		img := drawLayout(800, 600, white, []rectSpec{
			{50, 50, 200, 150, red},
			{400, 300, 10, 10, blue}, // 100 px, under the 500 px floor
		})
		res, err := e.Validate(img)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if res.ShapeCount != 1 {
			t.Fatalf("ShapeCount = %d, want 1 (tiny speck must not count)", res.ShapeCount)
		}
		wantEmpty := 100 * (1 - float64(200*150)/float64(800*600))
		if math.Abs(res.EmptySpacePct-wantEmpty) > 0.01 {
			t.Errorf("EmptySpacePct = %.4f, want %.4f (speck excluded from mask too)",
				res.EmptySpacePct, wantEmpty)
		}
	})

	t.Run("not rectangular", func(t *testing.T) {
		img := drawLayout(800, 600, white, []rectSpec{{50, 50, 200, 150, red}})
		drawTriangle(img, 500, 300, 80, blue) // 3240 px but ~0.5 fill ratio
		res, err := e.Validate(img)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if res.ShapeCount != 1 {
			t.Errorf("ShapeCount = %d, want 1 (triangle must be rejected)", res.ShapeCount)
		}
	})

	t.Run("above maximum area share", func(t *testing.T) {
		img := drawLayout(800, 600, white, []rectSpec{{10, 10, 750, 550, red}})
		res, err := e.Validate(img)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if res.ShapeCount != 0 {
			t.Errorf("ShapeCount = %d, want 0 (86%% coverage is not a block)", res.ShapeCount)
		}
		if res.EmptySpacePct != 100 {
			t.Errorf("EmptySpacePct = %.4f, want 100", res.EmptySpacePct)
		}
	})
}

func TestValidateShapeGeometry(t *testing.T) {
	rects := []rectSpec{
		{60, 30, 100, 90, red},
		{300, 200, 150, 100, green},
		{550, 400, 120, 110, blue},
	}
	res, err := New().Validate(drawLayout(800, 600, white, rects))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(res.Shapes) != len(rects) {
		t.Fatalf("got %d shapes, want %d", len(res.Shapes), len(rects))
	}

	for i, s := range res.Shapes {
		if s.Label != i+1 {
			t.Errorf("shape %d: label = %d, want %d (scan order)", i, s.Label, i+1)
		}
		want := rects[i]
		got := s.Bounds
		if got.X != want.x || got.Y != want.y || got.Width != want.w || got.Height != want.h {
			t.Errorf("shape %d: bounds = %+v, want {%d %d %d %d}", i, got, want.x, want.y, want.w, want.h)
		}
		if got.X < 0 || got.Y < 0 || got.X+got.Width > res.Width || got.Y+got.Height > res.Height {
			t.Errorf("shape %d: bounds %+v outside %dx%d image", i, got, res.Width, res.Height)
		}
		if s.Area != want.w*want.h {
			t.Errorf("shape %d: area = %d, want %d", i, s.Area, want.w*want.h)
		}
	}

	if res.Shapes[0].MeanColor != "#ff0000" {
		t.Errorf("first shape MeanColor = %q, want #ff0000", res.Shapes[0].MeanColor)
	}
}

func TestValidateDeterminism(t *testing.T) {
	img := drawLayout(640, 480, white, []rectSpec{
		{20, 20, 100, 80, red},
		{200, 150, 180, 120, blue},
		{450, 300, 90, 90, orange},
	})
	e := New()

	first, err := e.Validate(img)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	second, err := e.Validate(img)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if first.ShapeCount != second.ShapeCount {
		t.Errorf("ShapeCount differs between runs: %d vs %d", first.ShapeCount, second.ShapeCount)
	}
	if first.EmptySpacePct != second.EmptySpacePct {
		t.Errorf("EmptySpacePct differs between runs: %v vs %v", first.EmptySpacePct, second.EmptySpacePct)
	}
	if !reflect.DeepEqual(first.Shapes, second.Shapes) {
		t.Errorf("shape records differ between runs:\n%+v\n%+v", first.Shapes, second.Shapes)
	}
}

func TestValidateErrors(t *testing.T) {
	e := New()

	t.Run("garbage bytes", func(t *testing.T) {
		_, err := e.ValidateBytes([]byte("not an image at all"))
		if !errors.Is(err, ErrUndecodable) {
			t.Errorf("ValidateBytes() error = %v, want ErrUndecodable", err)
		}
	})

	t.Run("zero size image", func(t *testing.T) {
		_, err := e.Validate(image.NewRGBA(image.Rect(0, 0, 0, 0)))
		if !errors.Is(err, ErrEmptyImage) {
			t.Errorf("Validate() error = %v, want ErrEmptyImage", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := e.ValidateFile(filepath.Join(t.TempDir(), "nope.png"))
		if !errors.Is(err, ErrUndecodable) {
			t.Errorf("ValidateFile() error = %v, want ErrUndecodable", err)
		}
	})
}

func TestValidateBytesFormats(t *testing.T) {
	img := drawLayout(800, 600, white, []rectSpec{
		{60, 60, 160, 120, red},
		{400, 300, 200, 140, blue},
	})
	e := New()

	t.Run("png", func(t *testing.T) {
		res, err := e.ValidateBytes(encodePNG(t, img))
		if err != nil {
			t.Fatalf("ValidateBytes() error = %v", err)
		}
		if res.ShapeCount != 2 {
			t.Errorf("ShapeCount = %d, want 2", res.ShapeCount)
		}
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("encode jpeg: %v", err)
		}
		res, err := e.ValidateBytes(buf.Bytes())
		if err != nil {
			t.Fatalf("ValidateBytes() error = %v", err)
		}
		if res.ShapeCount != 2 {
			t.Errorf("ShapeCount = %d, want 2 (compression noise must be filtered)", res.ShapeCount)
		}
	})
}

func TestValidateAndReport(t *testing.T) {
	dir := t.TempDir()
	data := encodePNG(t, drawLayout(800, 600, white, []rectSpec{
		{50, 50, 150, 100, red},
		{350, 250, 180, 140, green},
	}))

	res, err := New().ValidateAndReport(data, dir, "original")
	if err != nil {
		t.Fatalf("ValidateAndReport() error = %v", err)
	}

	wantFiles := map[string]string{
		"mask":    filepath.Join(dir, "original_mask_occupied_areas.jpg"),
		"overlay": filepath.Join(dir, "original_rectangles_labeled.jpg"),
		"report":  filepath.Join(dir, "original_rectangle_report.csv"),
	}
	gotPaths := map[string]string{
		"mask":    res.MaskPath,
		"overlay": res.OverlayPath,
		"report":  res.ReportPath,
	}
	for kind, want := range wantFiles {
		if gotPaths[kind] != want {
			t.Errorf("%s path = %q, want %q", kind, gotPaths[kind], want)
		}
		info, err := os.Stat(want)
		if err != nil {
			t.Fatalf("%s artifact missing: %v", kind, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s artifact is empty", kind)
		}
	}

	f, err := os.Open(res.ReportPath)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(rows) != res.ShapeCount+1 {
		t.Errorf("report has %d rows, want %d (header + one per shape)", len(rows), res.ShapeCount+1)
	}
	if rows[0][0] != "ID" || rows[0][4] != "Color_RGB" {
		t.Errorf("unexpected report header: %v", rows[0])
	}
}

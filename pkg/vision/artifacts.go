package vision

import (
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	outlineColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	labelColor   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// WriteArtifacts emits the three review artifacts for one validation:
//
//	<key>_mask_occupied_areas.jpg   binary occupancy mask
//	<key>_rectangles_labeled.jpg    source image with numbered outlines
//	<key>_rectangle_report.csv      one row per detected shape
//
// and records their paths into res. The key namespaces the files per caller
// (for example "original" or "candidate_2").
func WriteArtifacts(res *Result, src image.Image, dir, key string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	maskPath := filepath.Join(dir, key+"_mask_occupied_areas.jpg")
	if err := writeJPEG(maskPath, maskImage(res)); err != nil {
		return err
	}
	overlayPath := filepath.Join(dir, key+"_rectangles_labeled.jpg")
	if err := writeJPEG(overlayPath, overlayImage(res, src)); err != nil {
		return err
	}
	reportPath := filepath.Join(dir, key+"_rectangle_report.csv")
	if err := writeReport(reportPath, res); err != nil {
		return err
	}

	res.MaskPath = maskPath
	res.OverlayPath = overlayPath
	res.ReportPath = reportPath
	return nil
}

func maskImage(res *Result) image.Image {
	mask := image.NewGray(image.Rect(0, 0, res.Width, res.Height))
	for i, on := range res.occupied {
		if on {
			mask.Pix[i] = 255
		}
	}
	return mask
}

func overlayImage(res *Result, src image.Image) image.Image {
	overlay := image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
	draw.Draw(overlay, overlay.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, s := range res.Shapes {
		drawOutline(overlay, s.Bounds, 3)

		// Label above the box when there is room, inside it otherwise.
		ty := s.Bounds.Y - 4
		if ty < basicfont.Face7x13.Ascent {
			ty = s.Bounds.Y + basicfont.Face7x13.Ascent + 4
		}
		d := &font.Drawer{
			Dst:  overlay,
			Src:  image.NewUniform(labelColor),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(s.Bounds.X+4, ty),
		}
		d.DrawString(strconv.Itoa(s.Label))
	}
	return overlay
}

func drawOutline(dst *image.RGBA, b Box, thickness int) {
	x1, y1 := b.X, b.Y
	x2, y2 := b.X+b.Width-1, b.Y+b.Height-1
	for t := 0; t < thickness; t++ {
		for x := x1 - t; x <= x2+t; x++ {
			setIfInside(dst, x, y1-t)
			setIfInside(dst, x, y2+t)
		}
		for y := y1 - t; y <= y2+t; y++ {
			setIfInside(dst, x1-t, y)
			setIfInside(dst, x2+t, y)
		}
	}
}

func setIfInside(dst *image.RGBA, x, y int) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, outlineColor)
	}
}

func writeReport(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ID", "Area_px", "Width", "Height", "Color_RGB", "Percentage"}); err != nil {
		return err
	}
	for _, s := range res.Shapes {
		pct := 100 * float64(s.Area) / float64(res.TotalPixels)
		if err := w.Write([]string{
			strconv.Itoa(s.Label),
			strconv.Itoa(s.Area),
			strconv.Itoa(s.Bounds.Width),
			strconv.Itoa(s.Bounds.Height),
			s.MeanColor,
			strconv.FormatFloat(pct, 'f', 2, 64),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUndecodable = errors.New("image cannot be decoded")
	ErrEmptyImage  = errors.New("image has no pixels")
)

// Engine detects rectangular component blocks against a near-uniform canvas.
// The zero value is not usable; construct with New and adjust fields before
// the first Validate call if the defaults don't fit the input material.
type Engine struct {
	// MinShapeArea is the smallest component (in pixels) counted as a block.
	// Smaller components are treated as noise.
	MinShapeArea int
	// MaxAreaRatio rejects components covering more than this share of the
	// image, which are canvas borders or lighting artifacts, not blocks.
	MaxAreaRatio float64
	// MinFillRatio is the minimum component-area / bounding-box-area ratio.
	// Rectangular blocks fill their box almost completely; diagonal strokes
	// and ragged blobs do not.
	MinFillRatio float64
	// BackgroundTolerance is the maximum per-pixel RGB distance from the
	// dominant canvas color still classified as background.
	BackgroundTolerance int
}

func New() *Engine {
	return &Engine{
		MinShapeArea:        500,
		MaxAreaRatio:        0.80,
		MinFillRatio:        0.85,
		BackgroundTolerance: 60,
	}
}

// Validate measures one decoded image. The background is taken to be the
// dominant quantized color (the canvas); everything further than
// BackgroundTolerance from it is foreground. Foreground pixels are grouped
// into 4-connected components, and a component survives when it meets the
// minimum area, maximum area share, and bounding-box fill-ratio thresholds.
// The occupancy mask is the union of the surviving bounding boxes, and the
// empty-space percentage is measured from that same mask, so shape count and
// empty space never disagree about what counts as a block.
//
// Validate is deterministic: identical pixels always produce the identical
// Result, with shapes labeled in scan order.
func (e *Engine) Validate(img image.Image) (*Result, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}
	total := w * h

	// Flatten to 8-bit RGB once; everything below works on these buffers.
	rs := make([]uint8, total)
	gs := make([]uint8, total)
	bs := make([]uint8, total)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			rs[i] = uint8(r >> 8)
			gs[i] = uint8(g >> 8)
			bs[i] = uint8(b >> 8)
		}
	}

	// Canvas color: dominant bucket of a 4-bit-per-channel histogram, then
	// the mean color of the pixels inside that bucket.
	var hist [4096]int
	for i := 0; i < total; i++ {
		hist[bucketKey(rs[i], gs[i], bs[i])]++
	}
	dominant := 0
	for k, n := range hist {
		if n > hist[dominant] {
			dominant = k
		}
	}
	var sumR, sumG, sumB, nDom int
	for i := 0; i < total; i++ {
		if bucketKey(rs[i], gs[i], bs[i]) == dominant {
			sumR += int(rs[i])
			sumG += int(gs[i])
			sumB += int(bs[i])
			nDom++
		}
	}
	bgR := sumR / nDom
	bgG := sumG / nDom
	bgB := sumB / nDom

	// Foreground mask: pixels far enough from the canvas color.
	tolSq := e.BackgroundTolerance * e.BackgroundTolerance
	fg := make([]bool, total)
	for i := 0; i < total; i++ {
		dr := int(rs[i]) - bgR
		dg := int(gs[i]) - bgG
		db := int(bs[i]) - bgB
		fg[i] = dr*dr+dg*dg+db*db > tolSq
	}

	// Connected components via flood fill (4-connected), filtered down to
	// approximately rectangular blocks.
	visited := make([]bool, total)
	var shapes []Shape
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg[y*w+x] || visited[y*w+x] {
				continue
			}

			minX, minY, maxX, maxY := x, y, x, y
			var cSumR, cSumG, cSumB, count int
			queue := []int{y*w + x}
			visited[y*w+x] = true

			for len(queue) > 0 {
				idx := queue[0]
				queue = queue[1:]
				py, px := idx/w, idx%w
				if px < minX {
					minX = px
				}
				if px > maxX {
					maxX = px
				}
				if py < minY {
					minY = py
				}
				if py > maxY {
					maxY = py
				}
				cSumR += int(rs[idx])
				cSumG += int(gs[idx])
				cSumB += int(bs[idx])
				count++

				for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					nx, ny := px+d[0], py+d[1]
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						nidx := ny*w + nx
						if fg[nidx] && !visited[nidx] {
							visited[nidx] = true
							queue = append(queue, nidx)
						}
					}
				}
			}

			if count < e.MinShapeArea {
				continue
			}
			if float64(count) > e.MaxAreaRatio*float64(total) {
				continue
			}
			boxW := maxX - minX + 1
			boxH := maxY - minY + 1
			if float64(count)/float64(boxW*boxH) < e.MinFillRatio {
				continue
			}

			shapes = append(shapes, Shape{
				Label:  len(shapes) + 1,
				Bounds: Box{X: minX, Y: minY, Width: boxW, Height: boxH},
				Area:   count,
				MeanColor: fmt.Sprintf("#%02x%02x%02x",
					cSumR/count, cSumG/count, cSumB/count),
			})
		}
	}

	// Occupancy mask: union of the surviving bounding boxes. Empty space is
	// whatever that union does not cover.
	occupied := make([]bool, total)
	occCount := 0
	for _, s := range shapes {
		for y := s.Bounds.Y; y < s.Bounds.Y+s.Bounds.Height; y++ {
			row := y * w
			for x := s.Bounds.X; x < s.Bounds.X+s.Bounds.Width; x++ {
				if !occupied[row+x] {
					occupied[row+x] = true
					occCount++
				}
			}
		}
	}

	return &Result{
		ShapeCount:     len(shapes),
		EmptySpacePct:  100 * float64(total-occCount) / float64(total),
		Shapes:         shapes,
		Width:          w,
		Height:         h,
		OccupiedPixels: occCount,
		TotalPixels:    total,
		occupied:       occupied,
	}, nil
}

// ValidateBytes decodes raw image bytes and validates them. Undecodable
// input fails with ErrUndecodable.
func (e *Engine) ValidateBytes(data []byte) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return e.Validate(img)
}

// ValidateFile reads and validates an image from disk.
func (e *Engine) ValidateFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return e.ValidateBytes(data)
}

// ValidateAndReport validates raw bytes and writes the mask, overlay, and
// report artifacts into dir, namespaced by key so concurrent validations
// never collide on file names.
func (e *Engine) ValidateAndReport(data []byte, dir, key string) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	res, err := e.Validate(img)
	if err != nil {
		return nil, err
	}
	if err := WriteArtifacts(res, img, dir, key); err != nil {
		return nil, err
	}
	return res, nil
}

func bucketKey(r, g, b uint8) int {
	return int(r>>4)<<8 | int(g>>4)<<4 | int(b>>4)
}

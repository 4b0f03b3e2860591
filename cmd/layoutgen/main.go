// Command layoutgen produces synthetic layout images for exercising the
// optimizer: five colored boxes on a white canvas, saved once as drawn
// (overlaps allowed) and once rearranged so no boxes overlap.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	imageWidth   = 800
	imageHeight  = 600
	outlineWidth = 2
	minSide      = 50
	maxSide      = 200
)

type box struct {
	x, y, w, h int
	fill       color.RGBA
}

// One box per color: red, green, blue, orange, yellow.
var palette = []color.RGBA{
	{255, 0, 0, 255},
	{0, 255, 0, 255},
	{0, 0, 255, 255},
	{255, 165, 0, 255},
	{255, 255, 0, 255},
}

func main() {
	out := flag.String("out", "data_gen", "output directory")
	count := flag.Int("count", 100, "number of image pairs to generate")
	seed := flag.Int64("seed", 0, "random seed (time-based when 0)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	imagesDir := filepath.Join(*out, "images")
	noOverlapDir := filepath.Join(*out, "images_without_overlap")
	for _, dir := range []string{imagesDir, noOverlapDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d images in: %s\n", *count, imagesDir)
	fmt.Printf("Generating %d non-overlapping images in: %s\n", *count, noOverlapDir)

	for i := 1; i <= *count; i++ {
		name := fmt.Sprintf("image_%03d.png", i)

		boxes := randomBoxes(rng)
		if err := writePNG(filepath.Join(imagesDir, name), cropToBounds(render(boxes), boxes)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		arranged, err := arrangeWithoutOverlap(rng, boxes)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := writePNG(filepath.Join(noOverlapDir, name), cropToBounds(render(arranged), arranged)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if i%10 == 0 {
			fmt.Printf("Generated %d/%d image pairs...\n", i, *count)
		}
	}
}

func randomBoxes(rng *rand.Rand) []box {
	boxes := make([]box, 0, len(palette))
	for _, fill := range palette {
		w := minSide + rng.Intn(maxSide-minSide+1)
		h := minSide + rng.Intn(maxSide-minSide+1)
		boxes = append(boxes, box{
			x:    rng.Intn(imageWidth - w + 1),
			y:    rng.Intn(imageHeight - h + 1),
			w:    w,
			h:    h,
			fill: fill,
		})
	}
	return boxes
}

func overlap(a, b box) bool {
	if a.x+a.w <= b.x || a.x >= b.x+b.w {
		return false
	}
	if a.y+a.h <= b.y || a.y >= b.y+b.h {
		return false
	}
	return true
}

func fitsAmong(b box, placed []box) bool {
	for _, other := range placed {
		if overlap(b, other) {
			return false
		}
	}
	return true
}

// arrangeWithoutOverlap repositions the boxes so none overlap, largest
// first: 500 random tries per box, then a deterministic grid sweep as the
// fallback.
func arrangeWithoutOverlap(rng *rand.Rand, boxes []box) ([]box, error) {
	arranged := make([]box, len(boxes))
	copy(arranged, boxes)

	order := make([]int, len(arranged))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := arranged[order[i]], arranged[order[j]]
		return a.w*a.h > b.w*b.h
	})

	var placed []box
	for _, idx := range order {
		b := arranged[idx]
		ok := false

		for try := 0; try < 500; try++ {
			b.x = rng.Intn(imageWidth - b.w + 1)
			b.y = rng.Intn(imageHeight - b.h + 1)
			if fitsAmong(b, placed) {
				ok = true
				break
			}
		}

		if !ok {
			for y := 0; y <= imageHeight-b.h && !ok; y += 5 {
				for x := 0; x <= imageWidth-b.w; x += 5 {
					b.x, b.y = x, y
					if fitsAmong(b, placed) {
						ok = true
						break
					}
				}
			}
		}

		if !ok {
			return nil, fmt.Errorf("unable to place box without overlap")
		}

		arranged[idx] = b
		placed = append(placed, b)
	}

	return arranged, nil
}

func render(boxes []box) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	black := color.RGBA{0, 0, 0, 255}
	for _, b := range boxes {
		rect := image.Rect(b.x, b.y, b.x+b.w, b.y+b.h)
		draw.Draw(img, rect, image.NewUniform(b.fill), image.Point{}, draw.Src)
		for i := 0; i < outlineWidth; i++ {
			ring := image.Rect(rect.Min.X+i, rect.Min.Y+i, rect.Max.X-i, rect.Max.Y-i)
			drawRing(img, ring, black)
		}
	}

	return img
}

func drawRing(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// cropToBounds trims the canvas to the smallest rectangle containing every
// box, padded by the outline width.
func cropToBounds(img *image.RGBA, boxes []box) *image.RGBA {
	minX, minY := imageWidth, imageHeight
	maxX, maxY := 0, 0
	for _, b := range boxes {
		minX = min(minX, b.x)
		minY = min(minY, b.y)
		maxX = max(maxX, b.x+b.w)
		maxY = max(maxY, b.y+b.h)
	}

	minX = max(minX-outlineWidth, 0)
	minY = max(minY-outlineWidth, 0)
	maxX = min(maxX+outlineWidth, imageWidth)
	maxY = min(maxY+outlineWidth, imageHeight)

	out := image.NewRGBA(image.Rect(0, 0, maxX-minX, maxY-minY))
	draw.Draw(out, out.Bounds(), img, image.Pt(minX, minY), draw.Src)
	return out
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, img)
}

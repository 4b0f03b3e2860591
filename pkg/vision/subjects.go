package vision

import "fmt"

const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// Subjects turns a validation result into prompt-friendly block
// descriptions. A block covering at least 12% of the image is large, at
// least 4% medium, anything else small.
func Subjects(res *Result) []Subject {
	subjects := make([]Subject, 0, len(res.Shapes))
	for _, s := range res.Shapes {
		subjects = append(subjects, Subject{
			Type:  "box",
			Color: s.MeanColor,
			Size:  sizeLabel(s.Area, res.TotalPixels),
			Area:  s.Area,
		})
	}
	return subjects
}

func sizeLabel(area, totalPixels int) string {
	pct := 100 * float64(area) / float64(totalPixels)
	switch {
	case pct >= 12:
		return SizeLarge
	case pct >= 4:
		return SizeMedium
	default:
		return SizeSmall
	}
}

func (s Subject) String() string {
	return fmt.Sprintf("%s %s %s (area %dpx)", s.Size, s.Color, s.Type, s.Area)
}

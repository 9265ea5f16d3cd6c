package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"

	"github.com/digkill/TGFaceSwapBot/internal/faceswap"
)

const (
	pigoMaxFaceSize  = 1000
	pigoShiftFactor  = 0.1
	pigoScaleFactor  = 1.1
	pigoIoUThreshold = 0.2
	pigoMinQuality   = 5.0
)

// Pigo detects faces in process with a pigo cascade classifier.
type Pigo struct {
	classifier *pigo.Pigo
	minSize    int
}

// NewPigo unpacks the cascade file at path (the "facefinder" cascade shipped with pigo).
func NewPigo(path string, minSize int) (*Pigo, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	if minSize <= 0 {
		minSize = 20
	}
	return &Pigo{classifier: classifier, minSize: minSize}, nil
}

// DetectFaces returns faces ordered by detection quality, best first.
func (p *Pigo) DetectFaces(ctx context.Context, img image.Image) ([]faceswap.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()

	params := pigo.CascadeParams{
		MinSize:     p.minSize,
		MaxSize:     pigoMaxFaceSize,
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: pigoScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, pigoIoUThreshold)
	return detectionsToRegions(dets, bounds), nil
}

func detectionsToRegions(dets []pigo.Detection, bounds image.Rectangle) []faceswap.Region {
	kept := make([]pigo.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Q >= pigoMinQuality {
			kept = append(kept, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Q > kept[j].Q })

	regions := make([]faceswap.Region, 0, len(kept))
	for _, d := range kept {
		half := d.Scale / 2
		rect := image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half).
			Add(bounds.Min).
			Intersect(bounds)
		if rect.Empty() {
			continue
		}
		regions = append(regions, faceswap.RegionFromRect(rect))
	}
	return regions
}

package faceswap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoFaceDetected = errors.New("no face detected")
	ErrResize         = errors.New("resize face region")
)

// Detector finds face regions in an image. Order is whatever the implementation reports.
type Detector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]Region, error)
}

// Engine crops a face from the donor image, scales it to the recipient face
// and pastes it over the recipient. No blending or alignment is attempted.
type Engine struct {
	detector Detector
	policy   Policy
	interp   resize.InterpolationFunction
}

func NewEngine(detector Detector, policy Policy, interp resize.InterpolationFunction) *Engine {
	return &Engine{detector: detector, policy: policy, interp: interp}
}

// Swap returns recipient with its selected face replaced by the donor's selected face.
// The recipient is modified in place when it is drawable; otherwise an RGBA copy is returned.
// ErrNoFaceDetected is returned when either image has no face.
func (e *Engine) Swap(ctx context.Context, donor, recipient image.Image) (image.Image, error) {
	var donorFaces, recipientFaces []Region
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		faces, err := e.detector.DetectFaces(gctx, donor)
		if err != nil {
			return fmt.Errorf("detect donor faces: %w", err)
		}
		donorFaces = faces
		return nil
	})
	g.Go(func() error {
		faces, err := e.detector.DetectFaces(gctx, recipient)
		if err != nil {
			return fmt.Errorf("detect recipient faces: %w", err)
		}
		recipientFaces = faces
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(donorFaces) == 0 || len(recipientFaces) == 0 {
		return nil, ErrNoFaceDetected
	}

	return Composite(donor, recipient, e.policy.Select(donorFaces), e.policy.Select(recipientFaces), e.interp)
}

// Composite pastes the donor region, resized to the recipient region's size, over the recipient region.
func Composite(donor, recipient image.Image, from, to Region, interp resize.InterpolationFunction) (image.Image, error) {
	src := from.Rect().Intersect(donor.Bounds())
	if src.Empty() {
		return nil, fmt.Errorf("%w: donor region %v outside image %v", ErrResize, from.Rect(), donor.Bounds())
	}
	if to.Width() <= 0 || to.Height() <= 0 {
		return nil, fmt.Errorf("%w: empty recipient region %v", ErrResize, to.Rect())
	}

	face := crop(donor, src)
	scaled := resize.Resize(uint(to.Width()), uint(to.Height()), face, interp)
	if got := scaled.Bounds(); got.Dx() != to.Width() || got.Dy() != to.Height() {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrResize, got.Dx(), got.Dy(), to.Width(), to.Height())
	}

	dst := drawable(recipient)
	draw.Draw(dst, to.Rect(), scaled, scaled.Bounds().Min, draw.Src)
	return dst, nil
}

func crop(img image.Image, rect image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// drawable returns img itself when it can be written without losing colour,
// and an RGBA copy otherwise (decoded JPEGs are read-only YCbCr, GIFs are paletted).
func drawable(img image.Image) draw.Image {
	switch d := img.(type) {
	case *image.RGBA:
		return d
	case *image.NRGBA:
		return d
	case *image.RGBA64:
		return d
	case *image.NRGBA64:
		return d
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

// ParseInterpolation maps a config name to an nfnt/resize interpolation function.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest", "nearestneighbor":
		return resize.NearestNeighbor, nil
	case "", "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell", "mitchellnetravali":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	default:
		return resize.Bilinear, fmt.Errorf("unknown interpolation: %q", name)
	}
}

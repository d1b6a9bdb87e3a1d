// Package detector abstracts the external pose landmark engine. The pipeline
// only sees Engine and Factory, so any backend (an HTTP sidecar running a
// pose model, recorded landmarks, or a test double) can be substituted.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/bdougie/swingvision/internal/models"
)

// ErrMalformedResult is returned when an engine produces a landmark set of the
// wrong size or with non-finite coordinates
var ErrMalformedResult = errors.New("malformed landmark result")

// Result is the output of one detection call
type Result struct {
	Landmarks      []models.Landmark `json:"landmarks"`
	WorldLandmarks []models.Landmark `json:"worldLandmarks,omitempty"`
}

// Engine detects body landmarks in a single image. Engines are stateful and
// handle one call at a time.
type Engine interface {
	Detect(ctx context.Context, img image.Image) (Result, error)
	Close() error
}

// Factory creates an engine for the lifetime of one pose sequence build
type Factory interface {
	Open(ctx context.Context) (Engine, error)
}

// FactoryFunc adapts a function to the Factory interface
type FactoryFunc func(ctx context.Context) (Engine, error)

// Open calls f(ctx)
func (f FactoryFunc) Open(ctx context.Context) (Engine, error) {
	return f(ctx)
}

// Validate checks that a result holds either no landmarks or a complete set
// of finite ones
func Validate(r Result) error {
	if err := validateSet(r.Landmarks); err != nil {
		return fmt.Errorf("landmarks: %w", err)
	}
	if err := validateSet(r.WorldLandmarks); err != nil {
		return fmt.Errorf("world landmarks: %w", err)
	}
	return nil
}

func validateSet(set []models.Landmark) error {
	if len(set) != 0 && len(set) != models.LandmarkCount {
		return fmt.Errorf("%w: got %d points, want 0 or %d", ErrMalformedResult, len(set), models.LandmarkCount)
	}
	for i, l := range set {
		if !l.Finite() {
			return fmt.Errorf("%w: point %d is not finite", ErrMalformedResult, i)
		}
	}
	return nil
}

package pose

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDuration is returned when the video reports a zero or unusable
	// duration, so there is nothing to sample
	ErrNoDuration = errors.New("video reports no duration")

	// ErrCancelled is returned when the build context is cancelled. No partial
	// sequence accompanies it.
	ErrCancelled = errors.New("pose sequence build cancelled")
)

// MediaLoadError reports that the video source could not be opened or decoded.
// It is fatal for the build.
type MediaLoadError struct {
	Path string
	Err  error
}

func (e *MediaLoadError) Error() string {
	return fmt.Sprintf("failed to load video '%s': %v", e.Path, e.Err)
}

func (e *MediaLoadError) Unwrap() error { return e.Err }

// DetectorInitError reports that the landmark engine could not be started.
// It is fatal for the build.
type DetectorInitError struct {
	Err error
}

func (e *DetectorInitError) Error() string {
	return fmt.Sprintf("failed to initialize pose detector: %v", e.Err)
}

func (e *DetectorInitError) Unwrap() error { return e.Err }

// DetectionFrameError reports a failed detection for one sample. The builder
// recovers from it by recording the frame with empty landmarks.
type DetectionFrameError struct {
	Index     int
	Timestamp float64
	Err       error
}

func (e *DetectionFrameError) Error() string {
	return fmt.Sprintf("detection failed for frame %d at %.3fs: %v", e.Index, e.Timestamp, e.Err)
}

func (e *DetectionFrameError) Unwrap() error { return e.Err }

// Failure reasons reported to hosts so they can offer the right retry action
const (
	ReasonLoad       = "load"
	ReasonDetector   = "detector"
	ReasonCancelled  = "cancelled"
	ReasonNoDuration = "no-duration"
	ReasonUnknown    = "unknown"
)

// FailureReason classifies a build error
func FailureReason(err error) string {
	var loadErr *MediaLoadError
	var initErr *DetectorInitError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return ReasonCancelled
	case errors.Is(err, ErrNoDuration):
		return ReasonNoDuration
	case errors.As(err, &loadErr):
		return ReasonLoad
	case errors.As(err, &initErr):
		return ReasonDetector
	default:
		return ReasonUnknown
	}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// Package pose turns a swing video into a PoseSequence by sampling it at a
// fixed interval and running the landmark detector on every sample.
package pose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/bdougie/swingvision/internal/detector"
	"github.com/bdougie/swingvision/internal/extractor"
	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/models"
	"github.com/bdougie/swingvision/internal/observability"
)

// DefaultInterval samples at 30 frames per second
const DefaultInterval = 1.0 / 30

// Progress is reported after every sampled instant
type Progress struct {
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// ProgressFunc receives build progress. It is called on the building goroutine.
type ProgressFunc func(Progress)

// Builder builds pose sequences. A Builder may be reused, but each Build call
// owns its own source, bitmap and detector engine.
type Builder struct {
	opener   extractor.Opener
	engines  detector.Factory
	interval float64
	maxDim   int
	tempDir  string
	logger   *slog.Logger
	metrics  *observability.PipelineMetrics
}

// Option configures a Builder
type Option func(*Builder)

// WithInterval sets the sampling interval in seconds
func WithInterval(seconds float64) Option {
	return func(b *Builder) {
		if seconds > 0 && !math.IsInf(seconds, 0) {
			b.interval = seconds
		}
	}
}

// WithMaxDimension caps the long axis of the detector bitmap
func WithMaxDimension(px int) Option {
	return func(b *Builder) {
		if px > 0 {
			b.maxDim = px
		}
	}
}

// WithTempDir sets where uploaded videos are spooled
func WithTempDir(dir string) Option {
	return func(b *Builder) { b.tempDir = dir }
}

// WithLogger sets the builder logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrDiscard(l) }
}

// WithMetrics records build metrics
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder returns a builder reading videos through opener and detecting
// landmarks with engines from factory
func NewBuilder(opener extractor.Opener, factory detector.Factory, opts ...Option) *Builder {
	b := &Builder{
		opener:   opener,
		engines:  factory,
		interval: DefaultInterval,
		maxDim:   extractor.DefaultMaxDimension,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// sampleEpsilon absorbs float error so a 4s clip at 1/30s yields 120 samples
const sampleEpsilon = 1e-9

// SampleCount returns how many instants t = i*interval satisfy t < duration
func SampleCount(duration, interval float64) int {
	if !(duration > 0) || !(interval > 0) || math.IsInf(duration, 0) {
		return 0
	}
	return max(0, int(math.Ceil(duration/interval-sampleEpsilon)))
}

// Build samples the video at videoPath and returns its pose sequence.
// Samples are taken strictly one at a time in timestamp order. A failed
// detection records the frame with empty landmarks; load failures, detector
// start-up failures and cancellation abort the build with no sequence.
func (b *Builder) Build(ctx context.Context, videoPath string, onProgress ProgressFunc) (seq models.PoseSequence, err error) {
	start := time.Now()
	defer func() {
		b.metrics.BuildFinished(resultLabel(err), time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return models.PoseSequence{}, cancelled(err)
	}

	report(onProgress, 0, "Loading video")

	src, err := b.opener.Open(ctx, videoPath)
	if err != nil {
		if ctx.Err() != nil {
			return models.PoseSequence{}, cancelled(ctx.Err())
		}
		return models.PoseSequence{}, &MediaLoadError{Path: videoPath, Err: err}
	}
	defer src.Close()

	duration := src.Duration()
	if !(duration > 0) || math.IsInf(duration, 0) {
		return models.PoseSequence{}, fmt.Errorf("%w: '%s'", ErrNoDuration, videoPath)
	}
	width, height := src.Size()

	report(onProgress, 0, "Initializing pose detector")

	engine, err := b.engines.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return models.PoseSequence{}, cancelled(ctx.Err())
		}
		return models.PoseSequence{}, &DetectorInitError{Err: err}
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			b.logger.Warn("failed to release pose detector", "error", cerr)
		}
	}()

	bitmap := extractor.NewBitmap(width, height, b.maxDim)
	total := SampleCount(duration, b.interval)
	frames := make([]models.PoseFrame, 0, total)

	b.logger.Info("building pose sequence",
		"video", videoPath, "duration", duration, "samples", total,
		"bitmap", fmt.Sprintf("%dx%d", bitmap.Bounds().Dx(), bitmap.Bounds().Dy()))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			b.logger.Info("pose sequence build cancelled", "video", videoPath, "frame", i, "samples", total)
			return models.PoseSequence{}, cancelled(err)
		}

		t := float64(i) * b.interval
		frame := models.PoseFrame{Timestamp: t}

		res, ferr := b.sample(ctx, src, engine, bitmap, t)
		if ferr != nil {
			if ctx.Err() != nil {
				return models.PoseSequence{}, cancelled(ctx.Err())
			}
			frameErr := &DetectionFrameError{Index: i, Timestamp: t, Err: ferr}
			b.logger.Warn("frame recorded without landmarks", "error", frameErr)
			b.metrics.DetectionFailed()
		} else {
			frame.Landmarks = res.Landmarks
			frame.WorldLandmarks = res.WorldLandmarks
		}

		frames = append(frames, frame)
		b.metrics.FrameSampled()
		report(onProgress, (i+1)*100/total, fmt.Sprintf("Analyzing frame %d/%d", i+1, total))
	}

	b.logger.Info("pose sequence complete", "video", videoPath, "frames", len(frames),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return models.PoseSequence{
		Frames:   frames,
		Duration: duration,
		Width:    width,
		Height:   height,
	}, nil
}

// sample seeks to t, copies the presented frame into the bitmap and runs one
// detection on it. Detector panics are reported as errors.
func (b *Builder) sample(ctx context.Context, src extractor.Source, engine detector.Engine,
	bitmap *extractor.Bitmap, t float64) (res detector.Result, err error) {

	if err := src.Seek(ctx, t); err != nil {
		return detector.Result{}, fmt.Errorf("seek failed: %w", err)
	}

	img := bitmap.Capture(src.Frame())

	defer func() {
		if r := recover(); r != nil {
			res, err = detector.Result{}, fmt.Errorf("detector panicked: %v", r)
		}
	}()

	res, err = engine.Detect(ctx, img)
	if err != nil {
		return detector.Result{}, err
	}
	if err := detector.Validate(res); err != nil {
		return detector.Result{}, err
	}
	return res, nil
}

// BuildFromReader spools r to a temporary file and builds from it. The file
// is removed on every exit path.
func (b *Builder) BuildFromReader(ctx context.Context, r io.Reader, ext string, onProgress ProgressFunc) (models.PoseSequence, error) {
	tmp, err := os.CreateTemp(b.tempDir, "swing-*"+ext)
	if err != nil {
		return models.PoseSequence{}, &MediaLoadError{Path: "upload", Err: err}
	}
	path := tmp.Name()
	defer func() {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			b.logger.Warn("failed to remove temporary video", "path", path, "error", rerr)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return models.PoseSequence{}, &MediaLoadError{Path: path, Err: fmt.Errorf("failed to spool upload: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return models.PoseSequence{}, &MediaLoadError{Path: path, Err: err}
	}

	return b.Build(ctx, path, onProgress)
}

func report(fn ProgressFunc, percent int, status string) {
	if fn == nil {
		return
	}
	fn(Progress{Percent: percent, Status: status})
}

func resultLabel(err error) string {
	switch FailureReason(err) {
	case "":
		return observability.ResultSuccess
	case ReasonLoad, ReasonNoDuration:
		return observability.ResultLoadError
	case ReasonDetector:
		return observability.ResultDetector
	case ReasonCancelled:
		return observability.ResultCancelled
	default:
		return observability.ResultError
	}
}

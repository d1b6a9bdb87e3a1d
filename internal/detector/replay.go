package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/bdougie/swingvision/internal/models"
)

// ReplayFactory hands out engines that return previously recorded landmarks in
// call order, one recorded frame per Detect call. Calls past the end of the
// recording return an empty result.
type ReplayFactory struct {
	frames []models.PoseFrame
}

// NewReplayFactory returns a factory replaying frames
func NewReplayFactory(frames []models.PoseFrame) *ReplayFactory {
	return &ReplayFactory{frames: frames}
}

// LoadSequence reads and validates a pose sequence dump written by
// `swingvision analyze --dump-landmarks`
func LoadSequence(path string) (models.PoseSequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.PoseSequence{}, fmt.Errorf("failed to read landmark recording: %w", err)
	}

	var seq models.PoseSequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return models.PoseSequence{}, fmt.Errorf("failed to parse landmark recording '%s': %w", path, err)
	}

	for i, f := range seq.Frames {
		if err := Validate(Result{Landmarks: f.Landmarks, WorldLandmarks: f.WorldLandmarks}); err != nil {
			return models.PoseSequence{}, fmt.Errorf("frame %d of '%s': %w", i, path, err)
		}
	}
	return seq, nil
}

// LoadReplay returns a factory replaying the recording at path
func LoadReplay(path string) (*ReplayFactory, error) {
	seq, err := LoadSequence(path)
	if err != nil {
		return nil, err
	}
	return NewReplayFactory(seq.Frames), nil
}

// Open returns a fresh engine positioned at the first recorded frame
func (f *ReplayFactory) Open(ctx context.Context) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &replayEngine{frames: f.frames}, nil
}

type replayEngine struct {
	frames []models.PoseFrame
	next   int
}

func (e *replayEngine) Detect(ctx context.Context, _ image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if e.next >= len(e.frames) {
		return Result{}, nil
	}
	f := e.frames[e.next]
	e.next++
	return Result{Landmarks: f.Landmarks, WorldLandmarks: f.WorldLandmarks}, nil
}

func (e *replayEngine) Close() error {
	return nil
}

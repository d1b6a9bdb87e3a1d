// Package swing segments a pose sequence into swing phases and computes the
// biomechanical metrics and scores for it. Everything here is a pure function
// of the landmark data.
package swing

import (
	"errors"

	"github.com/bdougie/swingvision/internal/models"
)

// ErrEmptySequence is returned when segmentation or analysis is asked to work
// on a sequence with no frames
var ErrEmptySequence = errors.New("pose sequence has no frames")

// Segmentation assigns the frames of a sequence to swing phases. All eight
// phases are always present; a phase with no usable frames has a nil
// representative.
type Segmentation struct {
	// N is the length of the segmented sequence
	N int
	// Windows holds, per phase, every frame index whose progress falls in the
	// phase window, including frames without landmarks
	Windows [models.PhaseCount][]int
	// Indices holds, per phase, the indices of frames with landmarks
	Indices [models.PhaseCount][]int
	// Representatives holds the temporally central frame of each phase
	Representatives [models.PhaseCount]*models.PoseFrame
}

// PhaseOf returns the phase whose half-open progress window contains i/n
func PhaseOf(i, n int) models.SwingPhase {
	progress := float64(i) / float64(n)
	for p := models.PhaseCount - 1; p > 0; p-- {
		if progress >= models.PhaseBoundaries[p] {
			return models.SwingPhase(p)
		}
	}
	return models.PhaseAddress
}

// Segment partitions seq into the eight swing phases
func Segment(seq models.PoseSequence) (Segmentation, error) {
	n := seq.Len()
	if n == 0 {
		return Segmentation{}, ErrEmptySequence
	}

	seg := Segmentation{N: n}
	for i := range seq.Frames {
		p := PhaseOf(i, n)
		seg.Windows[p] = append(seg.Windows[p], i)
		if seq.Frames[i].HasPose() {
			seg.Indices[p] = append(seg.Indices[p], i)
		}
	}

	for p, idx := range seg.Indices {
		if len(idx) == 0 {
			continue
		}
		seg.Representatives[p] = &seq.Frames[idx[len(idx)/2]]
	}

	return seg, nil
}

// Representative returns the representative frame of phase p, or nil
func (s Segmentation) Representative(p models.SwingPhase) *models.PoseFrame {
	return s.Representatives[p]
}

// Valid reports whether phase p has at least one usable frame
func (s Segmentation) Valid(p models.SwingPhase) bool {
	return s.Representatives[p] != nil
}

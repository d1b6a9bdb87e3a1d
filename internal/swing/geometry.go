package swing

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bdougie/swingvision/internal/models"
)

// Head stability thresholds on the combined nose travel, in normalized units
const (
	headExcellent = 0.05
	headGood      = 0.10
	headFair      = 0.15
)

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func midpoint(a, b models.Landmark) models.Landmark {
	return models.Landmark{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Visibility: math.Min(a.Visibility, b.Visibility),
	}
}

// SpineAngle returns the angle in degrees between the vertical axis and the
// vector from the hip midpoint to the nose. Image y grows downward, so the
// vertical offset is hip.y - nose.y. Missing points yield 0.
func SpineAngle(f models.PoseFrame) float64 {
	nose, ok1 := f.Point(models.Nose)
	lh, ok2 := f.Point(models.LeftHip)
	rh, ok3 := f.Point(models.RightHip)
	if !ok1 || !ok2 || !ok3 {
		return 0
	}
	hip := midpoint(lh, rh)
	dx := nose.X - hip.X
	dy := hip.Y - nose.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	return math.Abs(degrees(math.Atan2(dx, dy)))
}

// Rotation returns the angle in degrees of the left-to-right landmark pair
// projected on the horizontal/depth plane, |atan2(Δz, Δx)| with Δ = left - right.
// Missing points yield 0.
func Rotation(f models.PoseFrame, left, right int) float64 {
	l, ok1 := f.Point(left)
	r, ok2 := f.Point(right)
	if !ok1 || !ok2 {
		return 0
	}
	dx := l.X - r.X
	dz := l.Z - r.Z
	if dx == 0 && dz == 0 {
		return 0
	}
	return math.Abs(degrees(math.Atan2(dz, dx)))
}

// HipRotation returns the rotation of the hip line
func HipRotation(f models.PoseFrame) float64 {
	return Rotation(f, models.LeftHip, models.RightHip)
}

// ShoulderRotation returns the rotation of the shoulder line
func ShoulderRotation(f models.PoseFrame) float64 {
	return Rotation(f, models.LeftShoulder, models.RightShoulder)
}

// LeadArmAngle returns the angle in degrees of the left shoulder to left wrist
// vector above the horizontal. Missing points yield 0.
func LeadArmAngle(f models.PoseFrame) float64 {
	s, ok1 := f.Point(models.LeftShoulder)
	w, ok2 := f.Point(models.LeftWrist)
	if !ok1 || !ok2 {
		return 0
	}
	dx := math.Abs(w.X - s.X)
	dy := s.Y - w.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	return math.Abs(degrees(math.Atan2(dy, dx)))
}

// BalanceOffset returns the horizontal distance between the nose and the
// ankle midpoint. Missing points yield 0.
func BalanceOffset(f models.PoseFrame) float64 {
	nose, ok1 := f.Point(models.Nose)
	la, ok2 := f.Point(models.LeftAnkle)
	ra, ok3 := f.Point(models.RightAnkle)
	if !ok1 || !ok2 || !ok3 {
		return 0
	}
	return math.Abs(nose.X - midpoint(la, ra).X)
}

// HeadMovement measures the nose's lateral and vertical extent over every
// frame where it is visible and rates the combined extent. A sequence with no
// visible nose is rated poor.
func HeadMovement(seq models.PoseSequence) models.HeadMovement {
	xs := make([]float64, 0, seq.Len())
	ys := make([]float64, 0, seq.Len())
	for _, f := range seq.Frames {
		nose, ok := f.Point(models.Nose)
		if !ok {
			continue
		}
		xs = append(xs, nose.X)
		ys = append(ys, nose.Y)
	}

	if len(xs) == 0 {
		return models.HeadMovement{Stability: models.StatusPoor}
	}

	lateral := floats.Max(xs) - floats.Min(xs)
	vertical := floats.Max(ys) - floats.Min(ys)

	return models.HeadMovement{
		Lateral:   lateral,
		Vertical:  vertical,
		Stability: RateHeadStability(math.Hypot(lateral, vertical)),
	}
}

// RateHeadStability buckets a combined head travel extent
func RateHeadStability(extent float64) models.Status {
	switch {
	case extent < headExcellent:
		return models.StatusExcellent
	case extent < headGood:
		return models.StatusGood
	case extent < headFair:
		return models.StatusFair
	default:
		return models.StatusPoor
	}
}

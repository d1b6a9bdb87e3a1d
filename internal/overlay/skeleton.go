package overlay

import (
	"image/color"

	"github.com/bdougie/swingvision/internal/models"
)

// VisibilityThreshold is the minimum visibility for a joint to be drawn. A
// bone needs both endpoints above it.
const VisibilityThreshold = 0.5

// Bone joins two landmark indices
type Bone struct {
	A, B int
}

// Skeleton lists the bones drawn for a pose, face excluded
var Skeleton = []Bone{
	// torso
	{models.LeftShoulder, models.RightShoulder},
	{models.LeftShoulder, models.LeftHip},
	{models.RightShoulder, models.RightHip},
	{models.LeftHip, models.RightHip},
	// arms
	{models.LeftShoulder, models.LeftElbow},
	{models.LeftElbow, models.LeftWrist},
	{models.RightShoulder, models.RightElbow},
	{models.RightElbow, models.RightWrist},
	// hands
	{models.LeftWrist, models.LeftPinky},
	{models.LeftWrist, models.LeftIndex},
	{models.LeftWrist, models.LeftThumb},
	{models.LeftPinky, models.LeftIndex},
	{models.RightWrist, models.RightPinky},
	{models.RightWrist, models.RightIndex},
	{models.RightWrist, models.RightThumb},
	{models.RightPinky, models.RightIndex},
	// legs
	{models.LeftHip, models.LeftKnee},
	{models.LeftKnee, models.LeftAnkle},
	{models.RightHip, models.RightKnee},
	{models.RightKnee, models.RightAnkle},
	// feet
	{models.LeftAnkle, models.LeftHeel},
	{models.LeftHeel, models.LeftFootIndex},
	{models.LeftAnkle, models.LeftFootIndex},
	{models.RightAnkle, models.RightHeel},
	{models.RightHeel, models.RightFootIndex},
	{models.RightAnkle, models.RightFootIndex},
}

// Joints lists the landmark indices drawn as dots
var Joints = func() []int {
	joints := []int{models.Nose}
	for i := models.LeftShoulder; i < models.LandmarkCount; i++ {
		joints = append(joints, i)
	}
	return joints
}()

// Side of the body a landmark belongs to
type Side int

const (
	SideCenter Side = iota
	SideLeft
	SideRight
)

// SideOf classifies a landmark index. Body points from the shoulders down
// alternate left (odd) and right (even); the face points 1-3, 7 and 9 are
// left, 4-6, 8 and 10 are right and the nose is central.
func SideOf(i int) Side {
	switch {
	case i == models.Nose:
		return SideCenter
	case i >= models.LeftShoulder:
		if i%2 == 1 {
			return SideLeft
		}
		return SideRight
	case i <= 3 || i == 7 || i == 9:
		return SideLeft
	default:
		return SideRight
	}
}

// Palette
var (
	LeftColor   = color.RGBA{R: 0, G: 194, B: 255, A: 255}  // #00C2FF
	RightColor  = color.RGBA{R: 255, G: 112, B: 31, A: 255} // #FF701F
	CenterColor = color.RGBA{R: 72, G: 249, B: 10, A: 255}  // #48F90A
)

// ColorOf returns the palette color for a side
func ColorOf(s Side) color.RGBA {
	switch s {
	case SideLeft:
		return LeftColor
	case SideRight:
		return RightColor
	default:
		return CenterColor
	}
}

// BoneColor returns the left or right color for a bone on one side and the
// center color for bones crossing the body
func BoneColor(b Bone) color.RGBA {
	sa, sb := SideOf(b.A), SideOf(b.B)
	if sa != sb {
		return CenterColor
	}
	return ColorOf(sa)
}

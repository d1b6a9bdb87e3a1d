package models

import "math"

// LandmarkCount is the number of body keypoints in one pose observation
const LandmarkCount = 33

// Body landmark indices following the MediaPipe pose convention.
// Indices 1-10 cover the eyes, ears and mouth.
const (
	Nose           = 0
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
)

// Landmark represents one detected body point. X and Y are normalized image
// coordinates in [0,1], Z is a model-relative depth and Visibility is the
// detector's confidence in [0,1].
type Landmark struct {
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	Z          float64 `json:"z" yaml:"z"`
	Visibility float64 `json:"visibility" yaml:"visibility"`
}

// Finite reports whether every component of the landmark is a real number
func (l Landmark) Finite() bool {
	for _, v := range [4]float64{l.X, l.Y, l.Z, l.Visibility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// PoseFrame represents one timestamped observation. Landmarks is empty when
// detection failed for that instant, otherwise it holds LandmarkCount points.
type PoseFrame struct {
	Timestamp      float64    `json:"timestamp" yaml:"timestamp"`
	Landmarks      []Landmark `json:"landmarks" yaml:"landmarks"`
	WorldLandmarks []Landmark `json:"worldLandmarks,omitempty" yaml:"worldLandmarks,omitempty"`
}

// HasPose reports whether the frame carries a full set of landmarks
func (f PoseFrame) HasPose() bool {
	return len(f.Landmarks) == LandmarkCount
}

// Point returns the landmark at index i and whether it is usable, meaning the
// frame has a pose and the point has non-zero visibility.
func (f PoseFrame) Point(i int) (Landmark, bool) {
	if !f.HasPose() || i < 0 || i >= LandmarkCount {
		return Landmark{}, false
	}
	l := f.Landmarks[i]
	if l.Visibility <= 0 || !l.Finite() {
		return Landmark{}, false
	}
	return l, true
}

// PoseSequence is the ordered list of observations sampled from one video.
// It is read-only once the builder returns it.
type PoseSequence struct {
	Frames   []PoseFrame `json:"frames" yaml:"frames"`
	Duration float64     `json:"duration" yaml:"duration"`
	Width    int         `json:"width" yaml:"width"`
	Height   int         `json:"height" yaml:"height"`
}

// Len returns the number of sampled frames
func (s PoseSequence) Len() int {
	return len(s.Frames)
}

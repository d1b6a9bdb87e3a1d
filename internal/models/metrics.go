package models

// Status is the four-level quality rating shared by phase metrics
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
)

// NoData is the key-metric value carried by phases with no frames
const NoData = "No data"

// KeyMetric is the human-readable headline quantity of a phase
type KeyMetric struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// PhaseMetric is the scored summary of one swing phase
type PhaseMetric struct {
	Name      string     `json:"name" yaml:"name"`
	Phase     SwingPhase `json:"phase" yaml:"phase"`
	Timestamp float64    `json:"timestamp" yaml:"timestamp"`
	Score     int        `json:"score" yaml:"score"`
	Status    Status     `json:"status" yaml:"status"`
	KeyMetric KeyMetric  `json:"keyMetric" yaml:"keyMetric"`
	Valid     bool       `json:"valid" yaml:"valid"`
}

// SpineAngles holds the spine tilt in degrees at four stages
type SpineAngles struct {
	Address float64 `json:"address" yaml:"address"`
	Top     float64 `json:"top" yaml:"top"`
	Impact  float64 `json:"impact" yaml:"impact"`
	Finish  float64 `json:"finish" yaml:"finish"`
}

// Rotation holds a segment's rotation in degrees at backswing and impact
type Rotation struct {
	Backswing float64 `json:"backswing" yaml:"backswing"`
	Impact    float64 `json:"impact" yaml:"impact"`
	Total     float64 `json:"total" yaml:"total"`
}

// HeadMovement holds the nose's travel across the whole swing in normalized units
type HeadMovement struct {
	Lateral   float64 `json:"lateral" yaml:"lateral"`
	Vertical  float64 `json:"vertical" yaml:"vertical"`
	Stability Status  `json:"stability" yaml:"stability"`
}

// SwingPlane holds lead-arm plane angles in degrees
type SwingPlane struct {
	Backswing   float64 `json:"backswing" yaml:"backswing"`
	Downswing   float64 `json:"downswing" yaml:"downswing"`
	Consistency float64 `json:"consistency" yaml:"consistency"`
}

// Tempo holds phase durations in seconds and their ratio
type Tempo struct {
	BackswingTime float64 `json:"backswingTime" yaml:"backswingTime"`
	DownswingTime float64 `json:"downswingTime" yaml:"downswingTime"`
	Ratio         float64 `json:"ratio" yaml:"ratio"`
}

// WeightTransfer holds lead-side weight percentages
type WeightTransfer struct {
	Address float64 `json:"address" yaml:"address"`
	Impact  float64 `json:"impact" yaml:"impact"`
	Finish  float64 `json:"finish" yaml:"finish"`
	Rating  Status  `json:"rating" yaml:"rating"`
}

// SwingMetrics is the aggregate analysis of one pose sequence
type SwingMetrics struct {
	Phases           []PhaseMetric  `json:"phases" yaml:"phases"`
	SpineAngle       SpineAngles    `json:"spineAngle" yaml:"spineAngle"`
	HipRotation      Rotation       `json:"hipRotation" yaml:"hipRotation"`
	ShoulderRotation Rotation       `json:"shoulderRotation" yaml:"shoulderRotation"`
	HeadMovement     HeadMovement   `json:"headMovement" yaml:"headMovement"`
	SwingPlane       SwingPlane     `json:"swingPlane" yaml:"swingPlane"`
	Tempo            Tempo          `json:"tempo" yaml:"tempo"`
	WeightTransfer   WeightTransfer `json:"weightTransfer" yaml:"weightTransfer"`
	FrameCount       int            `json:"frameCount" yaml:"frameCount"`
	Duration         float64        `json:"duration" yaml:"duration"`
}

// Phase returns the metric for phase p
func (m SwingMetrics) Phase(p SwingPhase) PhaseMetric {
	for _, pm := range m.Phases {
		if pm.Phase == p {
			return pm
		}
	}
	return PhaseMetric{Phase: p, Name: p.DisplayName(), Status: StatusPoor,
		KeyMetric: KeyMetric{Value: NoData}}
}

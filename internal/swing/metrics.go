package swing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/bdougie/swingvision/internal/models"
)

// FramesPerSecond is the timing base used to turn phase frame counts into
// durations
const FramesPerSecond = 30.0

// HeadStabilityBonus is added to the overall score when head stability is excellent
const HeadStabilityBonus = 5.0

// phaseRule scores one phase from its key quantity. The score is 100 inside
// [lo, hi] and drops by slope points per unit outside it.
type phaseRule struct {
	label   string
	lo, hi  float64
	slope   float64
	measure func(models.PoseFrame, Segmentation) float64
	format  func(float64) string
}

func formatDegrees(v float64) string { return fmt.Sprintf("%.1f°", v) }

func formatOffset(v float64) string { return fmt.Sprintf("%.3f", v) }

var phaseRules = [models.PhaseCount]phaseRule{
	models.PhaseAddress: {
		label: "Spine Angle", lo: 0, hi: 12, slope: 2.5,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return SpineAngle(f) },
		format:  formatDegrees,
	},
	models.PhaseTakeaway: {
		label: "Shoulder Turn", lo: 10, hi: 45, slope: 2,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return ShoulderRotation(f) },
		format:  formatDegrees,
	},
	models.PhaseBackswing: {
		label: "Shoulder Turn", lo: 45, hi: 100, slope: 2,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return ShoulderRotation(f) },
		format:  formatDegrees,
	},
	models.PhaseTop: {
		label: "Spine Change", lo: 0, hi: 8, slope: 2.5,
		measure: func(f models.PoseFrame, seg Segmentation) float64 {
			address := 0.0
			if rep := seg.Representative(models.PhaseAddress); rep != nil {
				address = SpineAngle(*rep)
			}
			return math.Abs(SpineAngle(f) - address)
		},
		format: formatDegrees,
	},
	models.PhaseDownswing: {
		label: "Hip Rotation", lo: 20, hi: 60, slope: 2,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return HipRotation(f) },
		format:  formatDegrees,
	},
	models.PhaseImpact: {
		label: "Hip Rotation", lo: 30, hi: 60, slope: 2,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return HipRotation(f) },
		format:  formatDegrees,
	},
	models.PhaseFollowThrough: {
		label: "Shoulder Turn", lo: 60, hi: 120, slope: 2,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return ShoulderRotation(f) },
		format:  formatDegrees,
	},
	models.PhaseFinish: {
		label: "Balance Offset", lo: 0, hi: 0.05, slope: 400,
		measure: func(f models.PoseFrame, _ Segmentation) float64 { return BalanceOffset(f) },
		format:  formatOffset,
	},
}

// RangeScore returns 100 for v inside [lo, hi], falling linearly by slope
// points per unit of distance outside, clamped to [0, 100] and rounded
func RangeScore(v, lo, hi, slope float64) int {
	if math.IsNaN(v) {
		return 0
	}
	var dist float64
	switch {
	case v < lo:
		dist = lo - v
	case v > hi:
		dist = v - hi
	}
	return int(math.Round(clamp(100-dist*slope, 0, 100)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// StatusFor maps a score to its quality rating
func StatusFor(score int) models.Status {
	switch {
	case score >= 90:
		return models.StatusExcellent
	case score >= 75:
		return models.StatusGood
	case score >= 60:
		return models.StatusFair
	default:
		return models.StatusPoor
	}
}

// ScorePhase computes the metric for phase p
func ScorePhase(p models.SwingPhase, seq models.PoseSequence, seg Segmentation) models.PhaseMetric {
	rule := phaseRules[p]
	pm := models.PhaseMetric{
		Name:      p.DisplayName(),
		Phase:     p,
		KeyMetric: models.KeyMetric{Label: rule.label, Value: models.NoData},
		Status:    models.StatusPoor,
	}

	rep := seg.Representative(p)
	if rep == nil {
		if w := seg.Windows[p]; len(w) > 0 {
			pm.Timestamp = seq.Frames[w[0]].Timestamp
		}
		return pm
	}

	v := rule.measure(*rep, seg)
	pm.Timestamp = rep.Timestamp
	pm.Score = RangeScore(v, rule.lo, rule.hi, rule.slope)
	pm.Status = StatusFor(pm.Score)
	pm.KeyMetric.Value = rule.format(v)
	pm.Valid = true
	return pm
}

// TempoOf derives phase durations from the frame counts of the phase windows
func TempoOf(seg Segmentation) models.Tempo {
	back := len(seg.Windows[models.PhaseTakeaway]) +
		len(seg.Windows[models.PhaseBackswing]) +
		len(seg.Windows[models.PhaseTop])
	down := len(seg.Windows[models.PhaseDownswing])

	t := models.Tempo{
		BackswingTime: float64(back) / FramesPerSecond,
		DownswingTime: float64(down) / FramesPerSecond,
	}
	if down > 0 {
		t.Ratio = float64(back) / float64(down)
	}
	return t
}

func atRep(seg Segmentation, p models.SwingPhase, fn func(models.PoseFrame) float64) float64 {
	rep := seg.Representative(p)
	if rep == nil {
		return 0
	}
	return fn(*rep)
}

func rotationOf(seg Segmentation, fn func(models.PoseFrame) float64) models.Rotation {
	r := models.Rotation{
		Backswing: atRep(seg, models.PhaseBackswing, fn),
		Impact:    atRep(seg, models.PhaseImpact, fn),
	}
	r.Total = math.Abs(r.Backswing - r.Impact)
	return r
}

// OverallScore returns the mean of the phase scores, with invalid phases
// counting as zero, plus the head stability bonus, capped at 100
func OverallScore(m models.SwingMetrics) int {
	scores := make([]float64, models.PhaseCount)
	for i, p := range models.Phases {
		pm := m.Phase(p)
		if pm.Valid {
			scores[i] = float64(pm.Score)
		}
	}

	overall := stat.Mean(scores, nil)
	if m.HeadMovement.Stability == models.StatusExcellent {
		overall += HeadStabilityBonus
	}
	return int(math.Round(clamp(overall, 0, 100)))
}

// AnalyzePoseData computes the full metric set for seq. It is deterministic
// and performs no I/O.
func AnalyzePoseData(seq models.PoseSequence) (models.SwingMetrics, error) {
	seg, err := Segment(seq)
	if err != nil {
		return models.SwingMetrics{}, err
	}

	m := models.SwingMetrics{
		Phases:     make([]models.PhaseMetric, 0, models.PhaseCount),
		FrameCount: seq.Len(),
		Duration:   seq.Duration,
	}
	for _, p := range models.Phases {
		m.Phases = append(m.Phases, ScorePhase(p, seq, seg))
	}

	m.SpineAngle = models.SpineAngles{
		Address: atRep(seg, models.PhaseAddress, SpineAngle),
		Top:     atRep(seg, models.PhaseTop, SpineAngle),
		Impact:  atRep(seg, models.PhaseImpact, SpineAngle),
		Finish:  atRep(seg, models.PhaseFinish, SpineAngle),
	}
	m.HipRotation = rotationOf(seg, HipRotation)
	m.ShoulderRotation = rotationOf(seg, ShoulderRotation)
	m.HeadMovement = HeadMovement(seq)
	m.SwingPlane = models.SwingPlane{
		Backswing:   atRep(seg, models.PhaseBackswing, LeadArmAngle),
		Downswing:   atRep(seg, models.PhaseDownswing, LeadArmAngle),
		Consistency: PlaneConsistency,
	}
	m.Tempo = TempoOf(seg)
	m.WeightTransfer = PlaceholderWeightTransfer()

	return m, nil
}

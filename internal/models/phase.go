package models

// SwingPhase identifies one of the eight temporal segments of a swing
type SwingPhase int

const (
	PhaseAddress SwingPhase = iota
	PhaseTakeaway
	PhaseBackswing
	PhaseTop
	PhaseDownswing
	PhaseImpact
	PhaseFollowThrough
	PhaseFinish
)

// PhaseCount is the number of swing phases
const PhaseCount = 8

// Phases lists every phase in temporal order
var Phases = [PhaseCount]SwingPhase{
	PhaseAddress,
	PhaseTakeaway,
	PhaseBackswing,
	PhaseTop,
	PhaseDownswing,
	PhaseImpact,
	PhaseFollowThrough,
	PhaseFinish,
}

// PhaseBoundaries holds the normalized-progress window edges. Phase i covers
// the half-open interval [PhaseBoundaries[i], PhaseBoundaries[i+1]).
var PhaseBoundaries = [PhaseCount + 1]float64{0, .10, .20, .40, .45, .55, .60, .75, 1.0}

var phaseTags = [PhaseCount]string{
	"address", "takeaway", "backswing", "top", "downswing", "impact", "followThrough", "finish",
}

var phaseNames = [PhaseCount]string{
	"Address", "Takeaway", "Backswing", "Top of Swing", "Downswing", "Impact", "Follow Through", "Finish",
}

// String returns the phase tag
func (p SwingPhase) String() string {
	if p < 0 || int(p) >= PhaseCount {
		return "unknown"
	}
	return phaseTags[p]
}

// DisplayName returns the human-readable phase name
func (p SwingPhase) DisplayName() string {
	if p < 0 || int(p) >= PhaseCount {
		return "Unknown"
	}
	return phaseNames[p]
}

// Window returns the progress window of the phase
func (p SwingPhase) Window() (start, end float64) {
	return PhaseBoundaries[p], PhaseBoundaries[p+1]
}

// MarshalText encodes the phase as its tag
func (p SwingPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase tag
func (p *SwingPhase) UnmarshalText(b []byte) error {
	for i, tag := range phaseTags {
		if tag == string(b) {
			*p = SwingPhase(i)
			return nil
		}
	}
	*p = PhaseAddress
	return &UnknownPhaseError{Tag: string(b)}
}

// UnknownPhaseError is returned when decoding an unrecognised phase tag
type UnknownPhaseError struct {
	Tag string
}

func (e *UnknownPhaseError) Error() string {
	return "unknown swing phase: " + e.Tag
}

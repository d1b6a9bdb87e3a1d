package feedback

import (
	"fmt"
	"strings"

	"github.com/bdougie/swingvision/internal/models"
)

// ImprovementThreshold is the phase score below which an improvement and a
// drill are recommended
const ImprovementThreshold = 70

// Acceptable tempo ratio range, backswing time over downswing time
const (
	TempoMin = 2.5
	TempoMax = 3.5
)

// Drill catalogue
var (
	DrillHeadStill = models.Drill{
		Title:       "Head Still Drill",
		Description: "Set up with a club shaft touching the back of your head and make slow half swings without moving away from it.",
		FocusArea:   "Head Stability",
		Difficulty:  "Beginner",
	}
	DrillAlignmentStick = models.Drill{
		Title:       "Alignment Stick Setup",
		Description: "Lay one stick along your toe line and one through the ball to rehearse a square, athletic address position.",
		FocusArea:   "Setup",
		Difficulty:  "Beginner",
	}
	DrillCrossArm = models.Drill{
		Title:       "Cross-Arm Shoulder Turn",
		Description: "Cross your arms over your chest in address posture and turn until your lead shoulder is under your chin.",
		FocusArea:   "Rotation",
		Difficulty:  "Beginner",
	}
	DrillWallSpine = models.Drill{
		Title:       "Wall Spine Drill",
		Description: "Stand with your backside against a wall and swing to the top while keeping contact, so your spine angle holds.",
		FocusArea:   "Posture",
		Difficulty:  "Intermediate",
	}
	DrillStepThrough = models.Drill{
		Title:       "Step-Through Drill",
		Description: "Start the downswing by stepping toward the target with your lead foot to train hips-first sequencing.",
		FocusArea:   "Sequencing",
		Difficulty:  "Intermediate",
	}
	DrillImpactBag = models.Drill{
		Title:       "Impact Bag Drill",
		Description: "Hit an impact bag with half swings, freezing at contact with hands ahead and hips open.",
		FocusArea:   "Impact",
		Difficulty:  "Intermediate",
	}
	DrillHoldFinish = models.Drill{
		Title:       "Hold the Finish",
		Description: "Hold every finish for three seconds with your weight on the lead foot and belt buckle facing the target.",
		FocusArea:   "Balance",
		Difficulty:  "Beginner",
	}
	DrillMetronome = models.Drill{
		Title:       "Metronome Tempo Drill",
		Description: "Swing to a metronome, taking three beats to the top and one beat down to impact.",
		FocusArea:   "Tempo",
		Difficulty:  "Advanced",
	}
)

// Fallback lines used when no rule fires
const (
	NeutralStrength = "Consistent effort through every phase of the swing"
	MaintenanceNote = "Keep reinforcing your current fundamentals with regular practice"
)

type phaseRule struct {
	phases      []models.SwingPhase
	improvement string
	drill       models.Drill
}

var phaseRules = []phaseRule{
	{
		phases:      []models.SwingPhase{models.PhaseAddress},
		improvement: "Work on a more consistent setup posture at address",
		drill:       DrillAlignmentStick,
	},
	{
		phases:      []models.SwingPhase{models.PhaseTakeaway, models.PhaseBackswing},
		improvement: "Increase your shoulder turn in the backswing",
		drill:       DrillCrossArm,
	},
	{
		phases:      []models.SwingPhase{models.PhaseTop},
		improvement: "Maintain your spine angle through the top of the swing",
		drill:       DrillWallSpine,
	},
	{
		phases:      []models.SwingPhase{models.PhaseDownswing},
		improvement: "Start the downswing with your hips before your arms",
		drill:       DrillStepThrough,
	},
	{
		phases:      []models.SwingPhase{models.PhaseImpact},
		improvement: "Improve hip rotation and body position at impact",
		drill:       DrillImpactBag,
	},
	{
		phases:      []models.SwingPhase{models.PhaseFollowThrough, models.PhaseFinish},
		improvement: "Finish in balance with your weight on the lead side",
		drill:       DrillHoldFinish,
	},
}

// Assess applies the fixed rules to m and returns the strengths,
// improvements and drills. The result depends only on m.
func Assess(m models.SwingMetrics) (strengths, improvements []string, drills []models.Drill) {
	for _, p := range models.Phases {
		pm := m.Phase(p)
		if pm.Valid && pm.Status == models.StatusExcellent {
			strengths = append(strengths, fmt.Sprintf("Excellent %s (score %d)", strings.ToLower(pm.Name), pm.Score))
		}
	}

	switch m.HeadMovement.Stability {
	case models.StatusExcellent:
		strengths = append(strengths, "Very stable head position throughout the swing")
	case models.StatusFair, models.StatusPoor:
		improvements = append(improvements, "Reduce head movement during the swing")
		drills = append(drills, DrillHeadStill)
	}

	for _, rule := range phaseRules {
		if anyBelow(m, rule.phases) {
			improvements = append(improvements, rule.improvement)
			drills = append(drills, rule.drill)
		}
	}

	if r := m.Tempo.Ratio; r != 0 && (r < TempoMin || r > TempoMax) {
		improvements = append(improvements, fmt.Sprintf("Work toward a 3:1 tempo (currently %.1f:1)", r))
		drills = append(drills, DrillMetronome)
	}

	if len(strengths) == 0 {
		strengths = []string{NeutralStrength}
	}
	if len(improvements) == 0 {
		improvements = []string{MaintenanceNote}
	}
	if drills == nil {
		drills = []models.Drill{}
	}
	return strengths, improvements, drills
}

// anyBelow reports whether any of the phases scored under the threshold.
// Invalid phases score zero and so always count.
func anyBelow(m models.SwingMetrics, phases []models.SwingPhase) bool {
	for _, p := range phases {
		pm := m.Phase(p)
		score := pm.Score
		if !pm.Valid {
			score = 0
		}
		if score < ImprovementThreshold {
			return true
		}
	}
	return false
}

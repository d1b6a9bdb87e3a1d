package feedback

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/swingvision/internal/models"
	"github.com/bdougie/swingvision/internal/observability"
	"github.com/bdougie/swingvision/internal/swing"
)

func metricsWith(score int, stability models.Status, ratio float64) models.SwingMetrics {
	m := models.SwingMetrics{
		HeadMovement: models.HeadMovement{Stability: stability},
		Tempo:        models.Tempo{Ratio: ratio},
	}
	for _, p := range models.Phases {
		m.Phases = append(m.Phases, models.PhaseMetric{
			Name: p.DisplayName(), Phase: p, Score: score, Status: swing.StatusFor(score), Valid: true,
		})
	}
	return m
}

func setScore(m *models.SwingMetrics, p models.SwingPhase, score int) {
	m.Phases[p].Score = score
	m.Phases[p].Status = swing.StatusFor(score)
}

func drillTitles(drills []models.Drill) []string {
	titles := make([]string, 0, len(drills))
	for _, d := range drills {
		titles = append(titles, d.Title)
	}
	return titles
}

func TestAssessImpactBelowThreshold(t *testing.T) {
	m := metricsWith(85, models.StatusGood, 3)
	setScore(&m, models.PhaseImpact, 65)

	_, improvements, drills := Assess(m)
	assert.Equal(t, []string{"Impact Bag Drill"}, drillTitles(drills))
	assert.Contains(t, improvements, "Improve hip rotation and body position at impact")
}

func TestAssessEveryRule(t *testing.T) {
	m := metricsWith(50, models.StatusPoor, 5)

	strengths, improvements, drills := Assess(m)
	assert.Equal(t, []string{
		"Head Still Drill",
		"Alignment Stick Setup",
		"Cross-Arm Shoulder Turn",
		"Wall Spine Drill",
		"Step-Through Drill",
		"Impact Bag Drill",
		"Hold the Finish",
		"Metronome Tempo Drill",
	}, drillTitles(drills))
	assert.Len(t, improvements, len(drills))
	assert.Equal(t, []string{NeutralStrength}, strengths)
}

func TestAssessStrengthsAndFallbacks(t *testing.T) {
	m := metricsWith(80, models.StatusExcellent, 3)
	setScore(&m, models.PhaseTop, 95)

	strengths, improvements, drills := Assess(m)
	assert.Equal(t, []string{
		"Excellent top of swing (score 95)",
		"Very stable head position throughout the swing",
	}, strengths)
	assert.Equal(t, []string{MaintenanceNote}, improvements)
	assert.NotNil(t, drills)
	assert.Empty(t, drills)
}

func TestAssessInvalidPhasesCountAsZero(t *testing.T) {
	m := metricsWith(95, models.StatusGood, 0)
	m.Phases[models.PhaseDownswing] = models.PhaseMetric{
		Name: "Downswing", Phase: models.PhaseDownswing, Status: models.StatusPoor,
		KeyMetric: models.KeyMetric{Value: models.NoData},
	}

	strengths, _, drills := Assess(m)
	assert.Equal(t, []string{"Step-Through Drill"}, drillTitles(drills))
	assert.Len(t, strengths, 7)
}

func TestAssessTempo(t *testing.T) {
	for _, tc := range []struct {
		ratio float64
		drill bool
	}{
		{0, false}, {2.5, false}, {3.5, false}, {2.4, true}, {4, true},
	} {
		m := metricsWith(85, models.StatusGood, tc.ratio)
		_, _, drills := Assess(m)
		assert.Equal(t, tc.drill, len(drills) == 1, "ratio %.1f", tc.ratio)
	}
}

func TestGenerateWithoutNarrator(t *testing.T) {
	s := NewSynthesizer()
	fb := s.Generate(context.Background(), metricsWith(80, models.StatusExcellent, 3), "")

	assert.Equal(t, 85, fb.OverallScore)
	assert.Equal(t, NarrativePlaceholder, fb.AIInsights)
}

func TestGenerateNarratorFailuresUsePlaceholder(t *testing.T) {
	failures := map[string]Narrator{
		"error": NarratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("missing credentials")
		}),
		"empty": NarratorFunc(func(ctx context.Context, prompt string) (string, error) {
			return "   \n ", nil
		}),
		"panic": NarratorFunc(func(ctx context.Context, prompt string) (string, error) {
			panic("malformed response")
		}),
		"timeout": NarratorFunc(func(ctx context.Context, prompt string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	}

	for name, n := range failures {
		t.Run(name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			pm, err := observability.NewPipelineMetrics(reg)
			require.NoError(t, err)

			s := NewSynthesizer(WithNarrator(n), WithTimeout(20*time.Millisecond), WithMetrics(pm))
			fb := s.Generate(context.Background(), metricsWith(70, models.StatusGood, 3), "driver")

			assert.Equal(t, NarrativePlaceholder, fb.AIInsights)
			assert.Equal(t, 70, fb.OverallScore)

			expected := `
# HELP swingvision_narrative_requests_total Total number of narrative generation attempts by result
# TYPE swingvision_narrative_requests_total counter
swingvision_narrative_requests_total{result="unavailable"} 1
`
			assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
				"swingvision_narrative_requests_total"))
		})
	}
}

func TestGenerateTrimsAndCachesNarrative(t *testing.T) {
	var calls atomic.Int32
	var gotPrompt string
	n := NarratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		gotPrompt = prompt
		return "Your hips stall at impact. Rotate through the ball.\nKeep your head still. Also practise more!", nil
	})

	s := NewSynthesizer(WithNarrator(n), WithCacheTTL(time.Minute))
	m := metricsWith(72, models.StatusFair, 3.2)

	fb := s.Generate(context.Background(), m, "7-iron")
	assert.Equal(t, "Your hips stall at impact. Rotate through the ball. Keep your head still.", fb.AIInsights)
	assert.Contains(t, gotPrompt, "Club: 7-iron")
	assert.Contains(t, gotPrompt, "Impact: 72 (fair)")

	again := s.Generate(context.Background(), m, "7-iron")
	assert.Equal(t, fb.AIInsights, again.AIInsights)
	assert.Equal(t, int32(1), calls.Load())

	// a different club is a different prompt
	s.Generate(context.Background(), m, "driver")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateIsDeterministicApartFromNarrative(t *testing.T) {
	m := metricsWith(66, models.StatusFair, 2)
	a := NewSynthesizer().Generate(context.Background(), m, "")
	b := NewSynthesizer().Generate(context.Background(), m, "")
	assert.Equal(t, a, b)
}

func TestBuildPrompt(t *testing.T) {
	m := metricsWith(91, models.StatusExcellent, 3)
	m.Phases[models.PhaseFinish].Valid = false

	prompt := BuildPrompt(m, "  ")
	assert.NotContains(t, prompt, "Club:")
	assert.Contains(t, prompt, "- Address: 91 (excellent)")
	assert.Contains(t, prompt, "- Finish: No data")
	assert.Contains(t, prompt, "Head stability: excellent")
	assert.Contains(t, prompt, "Tempo ratio: 3.0:1")
	assert.Contains(t, prompt, "2-3 sentences")
}

func TestTrimSentences(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"One. Two. Three. Four.", 3, "One. Two. Three."},
		{"One. Two.", 3, "One. Two."},
		{"No terminator at all", 3, "No terminator at all"},
		{"Swing at 3.5 ratio. Nice! Really? Yes.", 3, "Swing at 3.5 ratio. Nice! Really?"},
		{"  spaced\n\tout.  ", 3, "spaced out."},
		{"", 3, ""},
		{"Anything.", 0, ""},
		{"Use a drill, e.g. the pump drill. Then swing. Again. Done.", 3, "Use a drill, e.g. the pump drill. Then swing. Again."},
		{"Ask Dr. Lee. Ask Mr. Smith. Done.", 1, "Ask Dr. Lee."},
		{"Grip pressure vs. speed. Next.", 1, "Grip pressure vs. speed."},
		{"Finish in position A.", 1, "Finish in position A."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrimSentences(tt.in, tt.n), "TrimSentences(%q)", tt.in)
	}
}

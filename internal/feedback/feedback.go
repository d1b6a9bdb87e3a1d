// Package feedback turns swing metrics into coaching feedback: rule-based
// strengths, improvements and drills plus an optional short narrative from an
// external generator.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/patrickmn/go-cache"

	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/models"
	"github.com/bdougie/swingvision/internal/observability"
	"github.com/bdougie/swingvision/internal/swing"
)

// NarrativePlaceholder replaces the narrative whenever it cannot be generated
const NarrativePlaceholder = "AI insights are not available for this swing right now. The phase scores and drills above still reflect your full analysis."

// ErrNarrativeUnavailable wraps every narrative failure. It is logged and
// counted but never returned from Generate.
var ErrNarrativeUnavailable = errors.New("narrative unavailable")

// Defaults
const (
	DefaultTimeout  = 20 * time.Second
	DefaultCacheTTL = time.Hour
	MaxSentences    = 3
)

// Narrator produces free text for a prompt
type Narrator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NarratorFunc adapts a function to Narrator
type NarratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f
func (f NarratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Synthesizer builds SwingFeedback
type Synthesizer struct {
	narrator Narrator
	timeout  time.Duration
	cache    *cache.Cache
	logger   *slog.Logger
	metrics  *observability.PipelineMetrics
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

// WithNarrator sets the narrative generator. Without one every swing gets the
// placeholder.
func WithNarrator(n Narrator) Option {
	return func(s *Synthesizer) { s.narrator = n }
}

// WithTimeout bounds each narrator call
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithCacheTTL sets how long successful narratives are reused for an
// identical prompt
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Synthesizer) {
		if ttl > 0 {
			s.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.logger = logging.OrDiscard(l) }
}

// WithMetrics records narrative outcomes
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

// NewSynthesizer returns a synthesizer configured by opts
func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		timeout: DefaultTimeout,
		cache:   cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate derives feedback for m. It never fails: narrative problems are
// absorbed and replaced with NarrativePlaceholder.
func (s *Synthesizer) Generate(ctx context.Context, m models.SwingMetrics, club string) models.SwingFeedback {
	strengths, improvements, drills := Assess(m)

	return models.SwingFeedback{
		OverallScore: swing.OverallScore(m),
		Strengths:    strengths,
		Improvements: improvements,
		Drills:       drills,
		AIInsights:   s.narrative(ctx, m, club),
	}
}

func (s *Synthesizer) narrative(ctx context.Context, m models.SwingMetrics, club string) string {
	prompt := BuildPrompt(m, club)

	if cached, ok := s.cache.Get(prompt); ok {
		s.metrics.NarrativeRequest(observability.NarrativeCached)
		return cached.(string)
	}

	text, err := s.request(ctx, prompt)
	if err != nil {
		s.logger.Warn("using narrative placeholder", "error", err)
		s.metrics.NarrativeRequest(observability.NarrativeUnavailable)
		return NarrativePlaceholder
	}

	s.cache.SetDefault(prompt, text)
	s.metrics.NarrativeRequest(observability.NarrativeSuccess)
	return text
}

func (s *Synthesizer) request(ctx context.Context, prompt string) (text string, err error) {
	if s.narrator == nil {
		return "", fmt.Errorf("%w: no narrative generator configured", ErrNarrativeUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: generator panicked: %v", ErrNarrativeUnavailable, r)
		}
	}()

	raw, err := s.narrator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNarrativeUnavailable, err)
	}

	text = TrimSentences(raw, MaxSentences)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrNarrativeUnavailable)
	}
	return text, nil
}

// BuildPrompt renders the structured narrative prompt for m
func BuildPrompt(m models.SwingMetrics, club string) string {
	var b strings.Builder
	b.WriteString("Golf swing analysis.\n")
	if club = strings.TrimSpace(club); club != "" {
		fmt.Fprintf(&b, "Club: %s\n", club)
	}
	b.WriteString("Phase scores (0-100):\n")
	for _, p := range models.Phases {
		pm := m.Phase(p)
		if !pm.Valid {
			fmt.Fprintf(&b, "- %s: %s\n", pm.Name, models.NoData)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d (%s)\n", pm.Name, pm.Score, pm.Status)
	}
	fmt.Fprintf(&b, "Head stability: %s\n", m.HeadMovement.Stability)
	fmt.Fprintf(&b, "Tempo ratio: %.1f:1\n", m.Tempo.Ratio)
	b.WriteString("In 2-3 sentences, give the golfer the single most important diagnosis and what to work on first.")
	return b.String()
}

// abbreviations whose trailing period does not end a sentence
var abbreviations = map[string]bool{"mr": true, "mrs": true, "ms": true, "dr": true, "vs": true, "approx": true}

// TrimSentences collapses whitespace and keeps at most n sentences of text.
// Periods after single letters ("e.g.", "i.e.") and common titles do not end a
// sentence.
func TrimSentences(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || n <= 0 {
		return ""
	}

	count := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// a terminator ends a sentence only at the end or before a space
		if i+1 < len(text) && text[i+1] != ' ' {
			continue
		}
		if r == '.' && i+1 < len(text) && isAbbreviation(text[:i]) {
			continue
		}
		count++
		if count == n {
			return text[:i+1]
		}
	}
	return text
}

// isAbbreviation reports whether the word ending prefix is an abbreviation
func isAbbreviation(prefix string) bool {
	word := prefix[strings.LastIndexByte(prefix, ' ')+1:]
	word = word[strings.LastIndexByte(word, '.')+1:]
	if len(word) == 1 {
		return unicode.IsLetter(rune(word[0]))
	}
	return abbreviations[strings.ToLower(word)]
}

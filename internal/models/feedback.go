package models

// Drill is a practice exercise recommended by the feedback synthesizer
type Drill struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	FocusArea   string `json:"focusArea" yaml:"focusArea"`
	Difficulty  string `json:"difficulty" yaml:"difficulty"`
}

// SwingFeedback is the coaching summary derived from SwingMetrics
type SwingFeedback struct {
	OverallScore int      `json:"overallScore" yaml:"overallScore"`
	Strengths    []string `json:"strengths" yaml:"strengths"`
	Improvements []string `json:"improvements" yaml:"improvements"`
	Drills       []Drill  `json:"drills" yaml:"drills"`
	AIInsights   string   `json:"aiInsights" yaml:"aiInsights"`
}

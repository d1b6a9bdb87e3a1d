// Package observability provides Prometheus metrics for the swing pipeline
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build outcomes recorded on the builds counter
const (
	ResultSuccess   = "success"
	ResultLoadError = "load_error"
	ResultDetector  = "detector_error"
	ResultCancelled = "cancelled"
	ResultError     = "error"
)

// Narrative outcomes recorded on the narrative requests counter
const (
	NarrativeSuccess     = "success"
	NarrativeCached      = "cached"
	NarrativeUnavailable = "unavailable"
)

// PipelineMetrics contains Prometheus metrics for pose building, analysis and
// feedback. A nil *PipelineMetrics is valid and records nothing, so components
// can run without a registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	framesSampledTotal     prometheus.Counter
	detectionFailuresTotal prometheus.Counter
	buildsTotal            *prometheus.CounterVec
	buildDuration          prometheus.Histogram
	analysesTotal          prometheus.Counter
	overallScore           prometheus.Histogram
	narrativeRequests      *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers the pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.framesSampledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swingvision_frames_sampled_total",
		Help: "Total number of video frames sampled for landmark detection",
	})
	m.detectionFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swingvision_detection_failures_total",
		Help: "Total number of frames recorded without landmarks because detection failed",
	})
	m.buildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swingvision_pose_builds_total",
		Help: "Total number of pose sequence builds by result",
	}, []string{"result"})
	m.buildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swingvision_pose_build_duration_seconds",
		Help:    "Wall-clock time taken to build a pose sequence",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
	})
	m.analysesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swingvision_analyses_total",
		Help: "Total number of completed swing analyses",
	})
	m.overallScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swingvision_overall_score",
		Help:    "Distribution of overall swing scores",
		Buckets: prometheus.LinearBuckets(10, 10, 10),
	})
	m.narrativeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swingvision_narrative_requests_total",
		Help: "Total number of narrative generation attempts by result",
	}, []string{"result"}) // result: success, cached, unavailable
}

// Describe implements prometheus.Collector
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesSampledTotal.Describe(ch)
	m.detectionFailuresTotal.Describe(ch)
	m.buildsTotal.Describe(ch)
	m.buildDuration.Describe(ch)
	m.analysesTotal.Describe(ch)
	m.overallScore.Describe(ch)
	m.narrativeRequests.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.framesSampledTotal.Collect(ch)
	m.detectionFailuresTotal.Collect(ch)
	m.buildsTotal.Collect(ch)
	m.buildDuration.Collect(ch)
	m.analysesTotal.Collect(ch)
	m.overallScore.Collect(ch)
	m.narrativeRequests.Collect(ch)
}

// FrameSampled counts one sampled frame
func (m *PipelineMetrics) FrameSampled() {
	if m == nil {
		return
	}
	m.framesSampledTotal.Inc()
}

// DetectionFailed counts one frame recorded without landmarks
func (m *PipelineMetrics) DetectionFailed() {
	if m == nil {
		return
	}
	m.detectionFailuresTotal.Inc()
}

// BuildFinished records the outcome and duration of a pose build
func (m *PipelineMetrics) BuildFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.buildsTotal.WithLabelValues(result).Inc()
	m.buildDuration.Observe(d.Seconds())
}

// AnalysisCompleted records the overall score of a finished analysis
func (m *PipelineMetrics) AnalysisCompleted(overallScore int) {
	if m == nil {
		return
	}
	m.analysesTotal.Inc()
	m.overallScore.Observe(float64(overallScore))
}

// NarrativeRequest records a narrative attempt
func (m *PipelineMetrics) NarrativeRequest(result string) {
	if m == nil {
		return
	}
	m.narrativeRequests.WithLabelValues(result).Inc()
}

// Package analyzer runs the full swing pipeline: pose building, metric
// analysis, feedback and persistence.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdougie/swingvision/internal/embeddings"
	"github.com/bdougie/swingvision/internal/feedback"
	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/models"
	"github.com/bdougie/swingvision/internal/observability"
	"github.com/bdougie/swingvision/internal/pose"
	"github.com/bdougie/swingvision/internal/storage"
	"github.com/bdougie/swingvision/internal/swing"
)

// embeddingWait bounds how long a save waits on the embedding pool
const embeddingWait = 5 * time.Second

// SequenceBuilder turns a video into a pose sequence
type SequenceBuilder interface {
	Build(ctx context.Context, videoPath string, onProgress pose.ProgressFunc) (models.PoseSequence, error)
	BuildFromReader(ctx context.Context, r io.Reader, ext string, onProgress pose.ProgressFunc) (models.PoseSequence, error)
}

// Processor drives one analysis at a time per call; it is safe for
// concurrent use as long as its collaborators are
type Processor struct {
	builder     SequenceBuilder
	synthesizer *feedback.Synthesizer
	storage     storage.Storage
	embeddings  *embeddings.Service
	metrics     *observability.PipelineMetrics
	logger      *slog.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithEmbeddings precomputes record embeddings on a worker pool
func WithEmbeddings(s *embeddings.Service) Option {
	return func(p *Processor) { p.embeddings = s }
}

// WithMetrics records completed analyses
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = logging.OrDiscard(l) }
}

func NewProcessor(builder SequenceBuilder, synthesizer *feedback.Synthesizer, store storage.Storage, opts ...Option) *Processor {
	p := &Processor{
		builder:     builder,
		synthesizer: synthesizer,
		storage:     store,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// VideoName returns the base name of a video path without its extension
func VideoName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// ProcessVideo analyzes the video at videoPath and stores the result
func (p *Processor) ProcessVideo(ctx context.Context, videoPath, club string, onProgress pose.ProgressFunc) (storage.Record, error) {
	p.logger.Info("processing video", "path", videoPath, "club", club)

	seq, err := p.builder.Build(ctx, videoPath, onProgress)
	if err != nil {
		return storage.Record{}, err
	}
	return p.AnalyzeSequence(ctx, seq, VideoName(videoPath), club)
}

// ProcessReader analyzes an uploaded video. filename supplies the container
// extension and the record's video name.
func (p *Processor) ProcessReader(ctx context.Context, r io.Reader, filename, club string, onProgress pose.ProgressFunc) (storage.Record, error) {
	p.logger.Info("processing upload", "filename", filename, "club", club)

	seq, err := p.builder.BuildFromReader(ctx, r, filepath.Ext(filename), onProgress)
	if err != nil {
		return storage.Record{}, err
	}
	return p.AnalyzeSequence(ctx, seq, VideoName(filename), club)
}

// AnalyzeSequence scores an already built sequence, generates feedback and
// stores the record
func (p *Processor) AnalyzeSequence(ctx context.Context, seq models.PoseSequence, videoName, club string) (storage.Record, error) {
	m, err := swing.AnalyzePoseData(seq)
	if err != nil {
		return storage.Record{}, fmt.Errorf("failed to analyze '%s': %w", videoName, err)
	}

	fb := p.synthesizer.Generate(ctx, m, club)
	rec := storage.NewRecord(videoName, club, &seq, m, fb)
	rec.Embedding = p.embed(ctx, rec)

	if err := p.storage.Save(ctx, rec); err != nil {
		return storage.Record{}, fmt.Errorf("failed to save analysis: %w", err)
	}
	if err := p.storage.Flush(); err != nil {
		return storage.Record{}, fmt.Errorf("failed to flush analysis: %w", err)
	}

	p.metrics.AnalysisCompleted(fb.OverallScore)
	p.logger.Info("analysis stored",
		"id", rec.ID,
		"video", videoName,
		"frames", seq.Len(),
		"overall", fb.OverallScore)
	return rec, nil
}

// embed fetches the record embedding from the pool. Stores compute it
// themselves when it is missing, so failures only log.
func (p *Processor) embed(ctx context.Context, rec storage.Record) []float32 {
	if p.embeddings == nil {
		return nil
	}

	timer := time.NewTimer(embeddingWait)
	defer timer.Stop()

	select {
	case res := <-p.embeddings.GetEmbedding(rec.ID.String(), rec.Metrics):
		if res.Error != nil {
			p.logger.Warn("embedding unavailable", "id", rec.ID, "error", res.Error)
			return nil
		}
		return res.Embedding
	case <-timer.C:
		p.logger.Warn("embedding timed out", "id", rec.ID)
	case <-ctx.Done():
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bdougie/swingvision/internal/analyzer"
	"github.com/bdougie/swingvision/internal/detector"
	"github.com/bdougie/swingvision/internal/embeddings"
	"github.com/bdougie/swingvision/internal/extractor"
	"github.com/bdougie/swingvision/internal/feedback"
	"github.com/bdougie/swingvision/internal/observability"
	"github.com/bdougie/swingvision/internal/pose"
	"github.com/bdougie/swingvision/internal/storage"
)

// stores groups the configured store with its optional capabilities
type stores struct {
	storage.Storage
	storage.Finder
	// postgres is set when the postgres store is configured
	postgres *storage.PostgresStorage
}

func (s *stores) Close() {
	if s.postgres != nil {
		s.postgres.Close()
	}
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	cfg := a.settings

	switch cfg.Storage.Type {
	case "postgres":
		pg := storage.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		}
		if cfg.Postgres.InitSchema {
			if err := storage.InitSchema(ctx, pg); err != nil {
				return nil, err
			}
		}
		store, err := storage.NewPostgresStorage(ctx, pg)
		if err != nil {
			return nil, err
		}
		a.logger.Info("using postgres store", "host", pg.Host, "database", pg.DBName)
		return &stores{Storage: store, Finder: store, postgres: store}, nil

	default:
		store, err := storage.NewFileStorage(cfg.Storage.OutputDir, cfg.Storage.Format, a.logger)
		if err != nil {
			return nil, err
		}
		return &stores{Storage: store, Finder: store}, nil
	}
}

func (a *app) detectorFactory() (detector.Factory, error) {
	cfg := a.settings.Detector
	if cfg.Type == "replay" {
		factory, err := detector.LoadReplay(cfg.ReplayPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load detector replay: %w", err)
		}
		return factory, nil
	}
	return detector.NewHTTPFactory(cfg.URL, cfg.Timeout), nil
}

// synthesizer builds the feedback synthesizer. An unreachable narrative
// model only disables the narrative.
func (a *app) synthesizer(ctx context.Context, metrics *observability.PipelineMetrics) *feedback.Synthesizer {
	cfg := a.settings.Narrative
	opts := []feedback.Option{
		feedback.WithTimeout(cfg.Timeout),
		feedback.WithCacheTTL(cfg.CacheTTL),
		feedback.WithLogger(a.logger),
		feedback.WithMetrics(metrics),
	}

	if cfg.Enabled {
		narrator, err := analyzer.NewAgent(ctx, analyzer.AgentConfig{
			BaseURL: cfg.BaseURL,
			Port:    cfg.Port,
			Model:   cfg.Model,
			Logger:  a.logger,
		})
		if err != nil {
			a.logger.Warn("narrative model unavailable, using placeholder insights", "error", err)
		} else {
			opts = append(opts, feedback.WithNarrator(narrator))
		}
	}
	return feedback.NewSynthesizer(opts...)
}

// pipeline is a ready to use processor and the resources it holds
type pipeline struct {
	processor  *analyzer.Processor
	stores     *stores
	embeddings *embeddings.Service
	registry   *prometheus.Registry
}

func (p *pipeline) Close() {
	p.embeddings.Close()
	p.stores.Close()
}

func (a *app) pipeline(ctx context.Context) (*pipeline, error) {
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewPipelineMetrics(registry)
	if err != nil {
		return nil, err
	}

	factory, err := a.detectorFactory()
	if err != nil {
		return nil, err
	}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	video := a.settings.Video
	builder := pose.NewBuilder(
		extractor.NewFFmpeg(video.FFmpegPath, video.FFprobePath),
		factory,
		pose.WithInterval(video.Interval),
		pose.WithMaxDimension(video.MaxDimension),
		pose.WithTempDir(video.TempDir),
		pose.WithLogger(a.logger),
		pose.WithMetrics(metrics),
	)

	emb := embeddings.NewService(2)
	processor := analyzer.NewProcessor(builder, a.synthesizer(ctx, metrics), st,
		analyzer.WithEmbeddings(emb),
		analyzer.WithMetrics(metrics),
		analyzer.WithLogger(a.logger),
	)

	return &pipeline{processor: processor, stores: st, embeddings: emb, registry: registry}, nil
}

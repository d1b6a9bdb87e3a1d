package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/bdougie/swingvision/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the swing analysis HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address, e.g. :8080")
	a.bind(cmd.Flags(), map[string]string{"listen": "server.listen"})
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cfg := a.settings
	opts := []server.Option{
		server.WithGatherer(p.registry),
		server.WithLogger(a.logger),
	}
	if p.stores.postgres != nil {
		opts = append(opts, server.WithSearcher(p.stores.postgres))
	}

	srv := server.New(server.Config{
		Listen:        cfg.Server.Listen,
		MaxUploadMB:   cfg.Server.MaxUploadMB,
		RecentTTL:     cfg.Server.RecentTTL,
		OverlayWidth:  cfg.Overlay.Width,
		OverlayHeight: cfg.Overlay.Height,
		OverlayScale:  cfg.Overlay.Scale,
	}, p.processor, p.stores, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

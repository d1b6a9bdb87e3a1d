package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bdougie/swingvision/internal/overlay"
)

type overlayOptions struct {
	at     float64
	output string
}

func overlayCommand(a *app) *cobra.Command {
	var opts overlayOptions

	cmd := &cobra.Command{
		Use:   "overlay <swing-id>",
		Short: "Render the pose overlay of a stored swing to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid swing ID %q: %w", args[0], err)
			}
			return a.renderOverlay(cmd, id, opts)
		},
	}

	flags := cmd.Flags()
	flags.Float64VarP(&opts.at, "time", "t", 0, "Playback position in seconds")
	flags.StringVar(&opts.output, "out", "overlay.png", "Output PNG path")
	flags.Int("width", 0, "Overlay width in CSS pixels")
	flags.Int("height", 0, "Overlay height in CSS pixels")
	flags.Float64("scale", 0, "Device pixel ratio")

	a.bind(flags, map[string]string{
		"width":  "overlay.width",
		"height": "overlay.height",
		"scale":  "overlay.scale",
	})
	return cmd
}

func (a *app) renderOverlay(cmd *cobra.Command, id uuid.UUID, opts overlayOptions) error {
	ctx := cmd.Context()

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load swing %s: %w", id, err)
	}
	if rec.Sequence == nil || rec.Sequence.Len() == 0 {
		return fmt.Errorf("swing %s has no stored pose sequence", id)
	}

	cfg := a.settings.Overlay
	canvas := overlay.NewCanvas(cfg.Width, cfg.Height, cfg.Scale)
	r := overlay.NewRenderer(canvas, overlay.ClockFunc(func() float64 { return opts.at }),
		overlay.WithFrameRate(cfg.FrameRate),
		overlay.WithLogger(a.logger))
	r.Update(overlay.Input{Sequence: rec.Sequence, CurrentTime: opts.at, Visible: true})
	r.Close()

	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.output, err)
	}
	if err := canvas.PNG(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	frame := overlay.ClosestFrame(rec.Sequence.Frames, opts.at)
	a.logger.Info("overlay written", "path", opts.output, "frame", frame,
		"timestamp", rec.Sequence.Frames[frame].Timestamp)
	return nil
}

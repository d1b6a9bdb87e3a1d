package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/bdougie/swingvision/internal/analyzer"
	"github.com/bdougie/swingvision/internal/detector"
	"github.com/bdougie/swingvision/internal/models"
	"github.com/bdougie/swingvision/internal/pose"
	"github.com/bdougie/swingvision/internal/storage"
)

const progressTemplate = `{{ string . "prefix" }} {{ bar . }} {{ percent . }} {{ etime . "%s elapsed" }}`

type analyzeOptions struct {
	club          string
	landmarks     string
	dumpLandmarks string
	quiet         bool
}

func analyzeCommand(a *app) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [video]",
		Short: "Analyze a swing video",
		Long: `Analyze a swing video: detect the golfer's pose in every sampled frame,
score the eight swing phases, generate coaching feedback and store the result.
With --landmarks a previously dumped pose sequence is analyzed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.landmarks == "" {
				return errors.New("a video path or --landmarks is required")
			}
			return a.analyze(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.club, "club", "", "Club used for the swing, e.g. driver or 7 iron")
	flags.StringVar(&opts.landmarks, "landmarks", "", "Analyze a dumped pose sequence instead of a video")
	flags.StringVar(&opts.dumpLandmarks, "dump-landmarks", "", "Write the detected pose sequence to this JSON file")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	flags.String("detector-url", "", "Pose detector sidecar URL")
	flags.Float64("interval", 0, "Sampling interval in seconds")
	flags.Bool("narrative", true, "Request AI insights from the narrative model")

	a.bind(flags, map[string]string{
		"detector-url": "detector.url",
		"interval":     "video.interval",
		"narrative":    "narrative.enabled",
	})
	return cmd
}

func (a *app) analyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	ctx := cmd.Context()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	var rec storage.Record
	if opts.landmarks != "" {
		seq, err := detector.LoadSequence(opts.landmarks)
		if err != nil {
			return err
		}
		rec, err = p.processor.AnalyzeSequence(ctx, seq, analyzer.VideoName(opts.landmarks), opts.club)
		if err != nil {
			return err
		}
	} else {
		var bar *pb.ProgressBar
		var onProgress pose.ProgressFunc
		if !opts.quiet {
			bar = pb.ProgressBarTemplate(progressTemplate).New(100).SetWriter(cmd.ErrOrStderr()).Start()
			onProgress = func(pr pose.Progress) {
				bar.Set("prefix", pr.Status)
				bar.SetCurrent(int64(pr.Percent))
			}
		}

		rec, err = p.processor.ProcessVideo(ctx, args[0], opts.club, onProgress)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return fmt.Errorf("analysis failed (%s): %w", pose.FailureReason(err), err)
		}
	}

	if opts.dumpLandmarks != "" && rec.Sequence != nil {
		if err := writeSequence(opts.dumpLandmarks, rec.Sequence); err != nil {
			return err
		}
		a.logger.Info("pose sequence written", "path", opts.dumpLandmarks, "frames", rec.Sequence.Len())
	}

	printReport(cmd.OutOrStdout(), rec)
	return nil
}

func writeSequence(path string, seq *models.PoseSequence) error {
	data, err := json.Marshal(seq)
	if err != nil {
		return fmt.Errorf("failed to encode pose sequence: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pose sequence: %w", err)
	}
	return nil
}

// printReport writes a human readable summary of rec
func printReport(w io.Writer, rec storage.Record) {
	m, fb := rec.Metrics, rec.Feedback

	fmt.Fprintf(w, "Swing %s (%s)\n", rec.ID, rec.VideoName)
	if rec.Club != "" {
		fmt.Fprintf(w, "Club: %s\n", rec.Club)
	}
	fmt.Fprintf(w, "Overall score: %d\n\n", fb.OverallScore)

	for _, phase := range models.Phases {
		pm := m.Phase(phase)
		if !pm.Valid {
			fmt.Fprintf(w, "  %-15s %s\n", pm.Name, models.NoData)
			continue
		}
		fmt.Fprintf(w, "  %-15s %3d  %-10s %s %s\n", pm.Name, pm.Score, pm.Status, pm.KeyMetric.Label, pm.KeyMetric.Value)
	}

	fmt.Fprintf(w, "\nTempo %.1f:1, head stability %s\n", m.Tempo.Ratio, m.HeadMovement.Stability)

	section(w, "Strengths", fb.Strengths)
	section(w, "Improvements", fb.Improvements)

	if len(fb.Drills) > 0 {
		fmt.Fprintln(w, "\nDrills")
		for _, d := range fb.Drills {
			fmt.Fprintf(w, "  - %s (%s, %s): %s\n", d.Title, d.FocusArea, d.Difficulty, d.Description)
		}
	}

	fmt.Fprintf(w, "\nInsights\n  %s\n", strings.TrimSpace(fb.AIInsights))
}

func section(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bdougie/swingvision/internal/embeddings"
	"github.com/bdougie/swingvision/internal/server"
)

func searchCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <swing-id>",
		Short: "List stored swings with metrics similar to a swing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid swing ID %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.postgres == nil {
				return errors.New("similar swing search requires the postgres store (--store postgres)")
			}

			rec, err := st.Find(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load swing %s: %w", id, err)
			}

			query := rec.Embedding
			if len(query) != embeddings.Dimensions {
				query = embeddings.FromMetrics(rec.Metrics)
			}
			results, err := st.postgres.SearchSimilar(ctx, query, rec.ID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Swings similar to %s (%s, score %d)\n", rec.ID, rec.VideoName, rec.Feedback.OverallScore)
			for _, r := range results {
				fmt.Fprintf(out, "  %.3f  %s  %-20s %3d  %s\n", r.Similarity, r.ID, r.VideoName, r.OverallScore, r.Club)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", server.DefaultSimilarLimit, "Number of swings to list")
	return cmd
}

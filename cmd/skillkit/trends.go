package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/agentskills/skillkit/pkg/presenter"
	"github.com/agentskills/skillkit/pkg/trends"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Trend detection commands",
}

var trendsDetectCmd = withTracing(&cobra.Command{
	Use:   "detect <platform>",
	Short: "Detect trending topics on a platform",
	Long: `Query the configured trend source for twitter, instagram or tiktok and print
the observations, highest score first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		agentID, _ := cmd.Flags().GetString("agent-id")

		var opts []trends.QueryOption
		if cmd.Flags().Changed("query") {
			q, _ := cmd.Flags().GetString("query")
			opts = append(opts, trends.WithQuery(q))
		}
		if cmd.Flags().Changed("time-window") {
			w, _ := cmd.Flags().GetString("time-window")
			opts = append(opts, trends.WithTimeWindow(w))
		}

		// Reject bad parameters before any backend is contacted.
		raw := map[string]any{"agent_id": agentID, "platform": args[0]}
		for _, opt := range opts {
			opt(raw)
		}
		if _, err := trends.ParseTrendQuery(raw); err != nil {
			return err
		}

		b, err := newBackends(ctx, appConfig)
		if err != nil {
			return err
		}
		defer b.Close(context.Background())

		result, err := b.detector.DetectTrends(ctx, agentID, args[0], opts...)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode trends")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))

		// The ranking below only repeats the JSON for a human reader.
		if presenter.IsQuiet() {
			return nil
		}
		if result.TotalTrends() == 0 {
			presenter.Warning("No trends above the relevance threshold")
			return nil
		}
		presenter.Separator()
		presenter.Section("Top trends")
		for _, o := range result.SortedByScore() {
			presenter.Info(fmt.Sprintf("%.2f  %s", o.TrendScore, o.Topic))
		}
		return nil
	},
})

func init() {
	trendsDetectCmd.Flags().String("agent-id", "cli", "Agent the query is made for")
	trendsDetectCmd.Flags().String("query", "", "Free-text query narrowing detection")
	trendsDetectCmd.Flags().String("time-window", string(trends.DefaultTimeWindow), "Time window (1h, 24h, 7d, 30d)")

	trendsCmd.AddCommand(trendsDetectCmd)
}

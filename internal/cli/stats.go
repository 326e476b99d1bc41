package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-memory/internal/model"
	"github.com/rcliao/companion-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory and database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	Memory           model.MemoryStats `json:"memory"`
	Total            int               `json:"total"`
	TotalSessionSecs float64           `json:"total_session_seconds"`
	AvgSessionSecs   float64           `json:"average_session_seconds"`
	DB               *store.DBStats    `json:"db"`
}

func runStats(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()
	ctx := cmd.Context()

	db, err := a.store.DBStats(ctx, a.cfg.DBPath)
	if err != nil {
		exitErr("stats", err)
	}
	ms := a.memory.Stats(ctx)
	out := statsOutput{
		Memory:           ms,
		Total:            ms.Total(),
		TotalSessionSecs: a.session.TotalTime(ctx).Seconds(),
		AvgSessionSecs:   a.session.AverageDuration(ctx).Seconds(),
		DB:               db,
	}
	printResult(cmd.OutOrStdout(), out, func(w io.Writer) {
		fmt.Fprintf(w, "working:  %d\nepisodic: %d\nsemantic: %d\ntotal:    %d\n",
			ms.WorkingCount, ms.EpisodicCount, ms.SemanticCount, ms.Total())
		fmt.Fprintf(w, "session time: %.0fs (avg %.0fs)\n", out.TotalSessionSecs, out.AvgSessionSecs)
	})
}

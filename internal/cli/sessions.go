package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-memory/internal/model"
)

func init() {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sessions, newest first",
		Args:  cobra.NoArgs,
		Run:   runSessionsHistory,
	}
	historyCmd.Flags().IntP("limit", "l", 0, "Max sessions (default from config)")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show total and average session time",
		Args:  cobra.NoArgs,
		Run:   runSessionsSummary,
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session with its memories and signal statistics",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionsShow,
	}

	sessionsCmd.AddCommand(historyCmd, summaryCmd, showCmd)
	RootCmd.AddCommand(sessionsCmd)
}

func runSessionsHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a := mustOpenApp()
	defer a.Close()

	sessions := a.session.History(cmd.Context(), limit)
	if sessions == nil {
		sessions = []model.Session{}
	}
	printResult(cmd.OutOrStdout(), sessions, func(w io.Writer) {
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.0fs\n", s.ID, s.Type, s.StartedAt.Format("2006-01-02 15:04:05"), s.Duration.Seconds())
		}
	})
}

func runSessionsSummary(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := mustOpenApp()
	defer a.Close()

	out := struct {
		TotalSeconds   float64 `json:"total_seconds"`
		AverageSeconds float64 `json:"average_seconds"`
	}{
		TotalSeconds:   a.session.TotalTime(ctx).Seconds(),
		AverageSeconds: a.session.AverageDuration(ctx).Seconds(),
	}
	printResult(cmd.OutOrStdout(), out, func(w io.Writer) {
		fmt.Fprintf(w, "total: %.0fs\naverage: %.0fs\n", out.TotalSeconds, out.AverageSeconds)
	})
}

type sessionDetail struct {
	model.Session
	Memories []model.Memory                              `json:"memories"`
	Signals  map[model.SignalType]model.SignalStatistics `json:"signals"`
}

func runSessionsShow(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := mustOpenApp()
	defer a.Close()

	all, err := a.store.ListSessions(ctx, 0)
	if err != nil {
		exitErr("list sessions", err)
	}
	var detail *sessionDetail
	for _, s := range all {
		if s.ID == args[0] {
			detail = &sessionDetail{Session: s, Signals: map[model.SignalType]model.SignalStatistics{}}
			break
		}
	}
	if detail == nil {
		exitErr("show", fmt.Errorf("session %s not found", args[0]))
	}

	detail.Memories = a.session.Memories(ctx, detail.ID)
	if detail.Memories == nil {
		detail.Memories = []model.Memory{}
	}
	for _, typ := range []model.SignalType{
		model.SignalHeadPose, model.SignalExpression, model.SignalVoiceAmplitude,
		model.SignalAttention, model.SignalEngagement,
	} {
		if st := a.session.PersistedSignalStatistics(ctx, detail.ID, typ); st.Count > 0 {
			detail.Signals[typ] = st
		}
	}

	printResult(cmd.OutOrStdout(), detail, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\t%.0fs\n", detail.ID, detail.Type, detail.Duration.Seconds())
		for typ, st := range detail.Signals {
			fmt.Fprintf(w, "  %s: n=%d avg=%.2f min=%.2f max=%.2f\n", typ, st.Count, st.Average, st.Min, st.Max)
		}
		printMemoryLines(w, detail.Memories)
	})
}

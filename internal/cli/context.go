package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-memory/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble recalled memories for a reply",
		Long:  "Recall memories for a query, then greedily pack them into a character budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max memories recalled (default from config)")
	cmd.Flags().IntP("budget", "b", memory.DefaultContextBudget, "Max characters in output")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	budget, _ := cmd.Flags().GetInt("budget")

	a := mustOpenApp()
	defer a.Close()

	result := a.memory.Context(cmd.Context(), memory.ContextParams{
		Query:  strings.Join(args, " "),
		Limit:  limit,
		Budget: budget,
	})
	printResult(cmd.OutOrStdout(), result, func(w io.Writer) {
		fmt.Fprintln(w, result.Text())
	})
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall memories containing text",
		Long: "Case and diacritic insensitive substring search, ranked by importance then last access. " +
			"Every recalled memory is reinforced.",
		Args: cobra.MinimumNArgs(1),
		Run:  runRecall,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	a := mustOpenApp()
	defer a.Close()

	memories := a.memory.Retrieve(cmd.Context(), query, limit)
	if memories == nil {
		memories = []model.Memory{}
	}
	printResult(cmd.OutOrStdout(), memories, func(w io.Writer) { printMemoryLines(w, memories) })
}

func printMemoryLines(w io.Writer, memories []model.Memory) {
	for _, m := range memories {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\n", m.ID, m.Layer, m.Importance, m.AccessCount, m.Content)
	}
}

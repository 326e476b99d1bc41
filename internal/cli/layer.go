package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "layer <working|episodic|semantic>",
		Short: "List the newest memories of one layer",
		Args:  cobra.ExactArgs(1),
		Run:   runLayer,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")

	RootCmd.AddCommand(cmd)
}

func runLayer(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	layer, err := model.ParseLayer(args[0])
	if err != nil {
		exitErr("layer", err)
	}

	a := mustOpenApp()
	defer a.Close()

	memories := a.memory.RetrieveByLayer(cmd.Context(), layer, limit)
	if memories == nil {
		memories = []model.Memory{}
	}
	printResult(cmd.OutOrStdout(), memories, func(w io.Writer) { printMemoryLines(w, memories) })
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Promote reinforced working memories",
		Long: "Sweep working memory once: important memories recalled more than three times become semantic, " +
			"other memories recalled more than once become episodic.",
		Args: cobra.NoArgs,
		Run:  runConsolidate,
	}

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	res, err := a.memory.Consolidate(cmd.Context())
	if err != nil {
		exitErr("consolidate", err)
	}
	printResult(cmd.OutOrStdout(), res, func(w io.Writer) {
		fmt.Fprintf(w, "semantic: %d\nepisodic: %d\n", res.Semantic, res.Episodic)
	})
}

package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one memory without reinforcing it",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	mem, err := a.store.GetMemory(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	printResult(cmd.OutOrStdout(), mem, nil)
}

package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export everything as JSON",
		Long:  "Export the profile, memories with their layer and access history, sessions and signals as one JSON document.",
		Args:  cobra.NoArgs,
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	snap, err := a.store.Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	printResult(cmd.OutOrStdout(), snap, nil)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every memory, session, signal and the profile",
		Args:  cobra.NoArgs,
		Run:   runWipe,
	}

	cmd.Flags().Bool("yes", false, "Confirm the wipe (irreversible)")

	RootCmd.AddCommand(cmd)
}

func runWipe(cmd *cobra.Command, args []string) {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		exitErr("wipe", fmt.Errorf("refusing to wipe without --yes"))
	}

	a := mustOpenApp()
	defer a.Close()

	if err := a.store.Wipe(cmd.Context()); err != nil {
		exitErr("wipe", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), `{"ok":true}`)
}

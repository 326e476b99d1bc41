package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the installation profile, creating it if absent",
		Args:  cobra.NoArgs,
		Run:   runProfile,
	}

	cmd.Flags().String("name", "", "Set the display name")

	RootCmd.AddCommand(cmd)
}

func runProfile(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := mustOpenApp()
	defer a.Close()

	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		if err := a.store.SetProfileName(ctx, name); err != nil {
			exitErr("set profile name", err)
		}
	}

	p, err := a.store.Profile(ctx)
	if err != nil {
		exitErr("profile", err)
	}
	printResult(cmd.OutOrStdout(), p, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format("2006-01-02"))
	})
}

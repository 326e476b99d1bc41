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
		Use:   "store [content]",
		Short: "Store a memory",
		Long: "Store a memory. Content can be a positional arg or piped via stdin. " +
			"Importance at or above the threshold goes straight to semantic memory; " +
			"anything else starts in working memory.",
		Run: runStore,
	}

	cmd.Flags().Float64P("importance", "i", memory.DefaultImportance, "Importance in [0, 1]")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("session", "", "Owning session ID")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	importance, _ := cmd.Flags().GetFloat64("importance")
	tagsStr, _ := cmd.Flags().GetString("tags")
	sessionID, _ := cmd.Flags().GetString("session")

	content := strings.TrimSpace(readContent(args))
	if content == "" {
		exitErr("store", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	a := mustOpenApp()
	defer a.Close()

	mem, err := a.memory.Store(cmd.Context(), memory.StoreParams{
		Content:    content,
		Importance: importance,
		Tags:       splitTags(tagsStr),
		SessionID:  sessionID,
	})
	if err != nil {
		exitErr("store", err)
	}

	printResult(cmd.OutOrStdout(), mem, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\n", mem.ID, mem.Layer)
	})
}

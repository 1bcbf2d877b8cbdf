package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the vector index for a repository",
		Long: `Index walks the repository, chunks every indexable file, embeds each
chunk via the configured backend, and writes the results to the local
vector store and state journal under .wb-grep/.

Re-running index only re-embeds files whose content hash has changed
since the last run. Use --clear to rebuild from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd, path, clear)
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the existing index and journal before indexing")
	return cmd
}

func runIndex(cmd *cobra.Command, path string, clear bool) error {
	a, err := newApp(path)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !a.Embedder.Ping(cmd.Context()) {
		return fmt.Errorf("embedding backend at %s is unreachable", a.Config.Ollama.BaseURL)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Indexing %s...\n", a.Root)

	summary, err := a.Engine.FullIndex(cmd.Context(), clear, func(i, total int, path string) {
		if total == 0 || i%25 == 0 || i == total {
			_, _ = fmt.Fprintf(out, "  [%d/%d] %s\n", i, total, path)
		}
	})
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Done: %d indexed, %d skipped, %d failed, %d chunks\n",
		summary.Indexed, summary.Skipped, summary.Failed, summary.TotalChunks)
	return nil
}

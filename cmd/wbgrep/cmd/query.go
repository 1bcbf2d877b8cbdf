package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		root       string
		limit      int
		pathFilter string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the index for code semantically similar to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return runQuery(cmd, root, text, limit, pathFilter, jsonOut)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Repository root to query")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVar(&pathFilter, "path", "", "Restrict results to files under this path prefix")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runQuery(cmd *cobra.Command, root, text string, limit int, pathFilter string, jsonOut bool) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !a.Embedder.Ping(cmd.Context()) {
		return fmt.Errorf("embedding backend at %s is unreachable", a.Config.Ollama.BaseURL)
	}

	results, err := a.Engine.Query(cmd.Context(), text, limit, pathFilter)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		_, _ = fmt.Fprintf(out, "No results for %q\n", text)
		return nil
	}

	for i, r := range results {
		_, _ = fmt.Fprintf(out, "%d. %s:%d-%d (score %.3f)\n", i+1, r.Filepath, r.LineStart, r.LineEnd, r.Score)
	}
	return nil
}

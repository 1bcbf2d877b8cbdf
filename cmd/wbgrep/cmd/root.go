// Package cmd provides the CLI commands for wbgrep.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wb200/wb-grep/internal/logging"
	"github.com/wb200/wb-grep/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the wbgrep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wbgrep",
		Short: "Semantic search over a local code repository",
		Long: `wbgrep indexes a source repository into a local vector store and
answers natural-language queries with the most semantically similar
code regions.

Run 'wbgrep index' to build the index, then 'wbgrep query <text>' to
search it, or 'wbgrep watch' to keep the index current as files change.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("wbgrep version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.wb-grep/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

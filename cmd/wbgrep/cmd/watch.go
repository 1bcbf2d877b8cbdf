package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wb200/wb-grep/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index a repository, then keep the index current as files change",
		Long: `Watch performs a full index of the repository, then watches the
filesystem and incrementally re-indexes files as they are created,
modified, or removed. Rapid successive edits to the same file are
coalesced into a single reconcile after a 500ms debounce window.

Events that occur during the initial index are not captured; the
initial index always runs to completion before the watcher starts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(cmd, path)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, path string) error {
	a, err := newApp(path)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Indexing %s...\n", a.Root)
	summary, err := a.Engine.FullIndex(ctx, false, nil)
	if err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Indexed: %d indexed, %d skipped, %d failed, %d chunks\n",
		summary.Indexed, summary.Skipped, summary.Failed, summary.TotalChunks)

	w, err := watcher.New(a.Root, watcher.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Watching %s for changes (ctrl-c to stop)...\n", a.Root)
	watchLoop(ctx, w, a, out)
	return a.Journal.Save()
}

func watchLoop(ctx context.Context, w *watcher.Watcher, a *app, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Batches():
			if !ok {
				return
			}
			for _, p := range batch {
				if !shouldReconcile(a, p) {
					continue
				}
				res := a.Engine.ReconcileFile(ctx, p, false)
				if res.Err != nil {
					slog.Warn("watch: failed to reconcile file", slog.String("path", p), slog.String("error", res.Err.Error()))
					continue
				}
				if !res.Skipped {
					_, _ = fmt.Fprintf(out, "  reconciled %s (%d chunks)\n", p, res.Chunks)
				}
			}
			if err := a.Journal.Save(); err != nil {
				slog.Warn("watch: failed to save journal after batch", slog.String("error", err.Error()))
			}
		case p, ok := <-w.Unlinks():
			if !ok {
				return
			}
			if err := a.Engine.DeleteFile(p); err != nil {
				slog.Warn("watch: failed to delete file from index", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			_, _ = fmt.Fprintf(out, "  removed %s\n", p)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			slog.Warn("watch: fsnotify error", slog.String("error", err.Error()))
		}
	}
}

// shouldReconcile reports whether p still warrants a reconcile: it must
// exist, be a regular file, and not match the walker's ignore rules.
func shouldReconcile(a *app, p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if !info.Mode().IsRegular() {
		return false
	}
	return !a.Walker.IsIgnored(p, false)
}

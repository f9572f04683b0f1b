package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/diff"
	"github.com/openmined/syftfiles/internal/filesync"
	"github.com/openmined/syftfiles/internal/watch"
	"github.com/spf13/cobra"
)

const staleRetries = 3

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var dest string
	var recursive bool
	var allowDeletions bool
	var dryRun bool
	var watchMode bool
	var quietPeriod time.Duration
	var include []string

	cmd := &cobra.Command{
		Use:   "sync <path> <container>",
		Short: "Publish the changes in a local tree as a new container version",
		Long: "Sync compares a local file or directory with the latest version of a container " +
			"and publishes one new version holding the differences. The container may be an " +
			"sfc:// url or a bare address.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchMode && dryRun {
				return errors.New("--watch and --dry-run cannot be combined")
			}

			target, err := parseContainer(args[1])
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			params := &filesync.SyncParams{
				Root:           args[0],
				Container:      target,
				Recursive:      recursive,
				DestRoot:       dest,
				AllowDeletions: allowDeletions,
				DryRun:         dryRun,
				Include:        include,
			}

			out := cmd.OutOrStdout()
			if err := runSync(ws, params, out, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if !watchMode {
				return nil
			}

			w := watch.New(params.Root,
				watch.WithQuietPeriod(quietPeriod),
				watch.WithRecursive(recursive),
				watch.WithFilter(excludedFrom(params.Root, include)),
			)
			if err := w.Start(ws.ctx); err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(out, "%s %s\n", cyan.Render("Watching"), params.Root)
			for batch := range w.Batches() {
				slog.Info("sync watch batch", "paths", len(batch.Paths))
				if err := runSync(ws, params, out, cmd.ErrOrStderr()); err != nil {
					if ws.ctx.Err() != nil {
						return nil
					}
					// the next change gets another attempt
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", red.Render("ERROR"), err)
				}
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVar(&dest, "dest", "", "Path prefix for every file inside the container")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().BoolVar(&allowDeletions, "delete", false, "Remove container files that no longer exist locally")
	cmd.Flags().StringArrayVarP(&include, "include", "i", nil, `Only sync files matching these globs; cannot be combined with --delete`)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the changes without storing or publishing anything")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Keep running and sync again whenever the tree changes")
	cmd.Flags().DurationVar(&quietPeriod, "quiet-period", watch.DefaultQuietPeriod, "How long the tree must stay still before a watch sync")
	return cmd
}

// runSync syncs once. A publish that lost a race to another writer is
// retried against the newer version.
func runSync(ws *workspace, params *filesync.SyncParams, out, errOut io.Writer) error {
	var res *filesync.SyncResult
	var err error
	for attempt := 1; ; attempt++ {
		res, err = ws.service.Sync(ws.ctx, params)
		if err == nil {
			break
		}
		var stale *filesync.StaleVersionError
		if !errors.As(err, &stale) || attempt >= staleRetries {
			return err
		}
		slog.Warn("sync raced another writer, retrying", "container", stale.Address, "read", stale.Read, "current", stale.Current)
	}

	printOperations(out, res.Operations)
	printFailures(errOut, res.Failed, res.Warning)

	summary := res.Summary()
	switch {
	case params.DryRun:
		fmt.Fprintf(out, "%s %s against version %d\n", gray.Render("Dry run"), formatSummary(summary), res.PriorVersion)
	case res.Published:
		fmt.Fprintf(out, "%s version %d (%s)\n", green.Render("Published"), res.Snapshot.Version, formatSummary(summary))
		fmt.Fprintln(out, address.NewURL(res.Snapshot.Address, ws.Base()).WithVersion(res.Snapshot.Version).String())
	default:
		fmt.Fprintf(out, "%s at version %d\n", green.Render("Up to date"), res.Snapshot.Version)
	}
	return nil
}

// excludedFrom drops watch events for files the include patterns leave out,
// so they never trigger a sync.
func excludedFrom(root string, include []string) watch.FilterCallback {
	if len(include) == 0 {
		return nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return func(path string) bool {
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return false
		}
		rel = filepath.ToSlash(rel)
		for _, p := range include {
			if ok, _ := doublestar.Match(p, rel); ok {
				return false
			}
		}
		return true
	}
}

func printOperations(w io.Writer, ops []diff.Operation) {
	for _, op := range ops {
		switch op.Type {
		case diff.OpAdd:
			fmt.Fprintf(w, "%s %s\n", green.Render("+"), op.Path)
		case diff.OpUpdate:
			fmt.Fprintf(w, "%s %s\n", cyan.Render("~"), op.Path)
		case diff.OpDelete:
			fmt.Fprintf(w, "%s %s\n", red.Render("-"), op.Path)
		}
	}
}

func formatSummary(s diff.Summary) string {
	return fmt.Sprintf("%d added, %d updated, %d deleted", s.Added, s.Updated, s.Deleted)
}

// parseContainer accepts an sfc:// url or a bare address naming a container.
func parseContainer(raw string) (address.Address, error) {
	u, err := address.ParseURL(raw)
	if err != nil {
		return address.Undef, err
	}
	if !u.Address.IsContainer() {
		return address.Undef, fmt.Errorf("%s is not a container address", raw)
	}
	if u.Path != "" || u.Version != nil {
		return address.Undef, fmt.Errorf("%s: sync targets the latest version of the whole container", raw)
	}
	return u.Address, nil
}

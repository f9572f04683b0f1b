package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/filesync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPutCmd())
}

func newPutCmd() *cobra.Command {
	var name string
	var dest string
	var recursive bool
	var include []string

	cmd := &cobra.Command{
		Use:   "put <path>",
		Short: "Store a file or directory as a new files container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			res, err := ws.service.Put(ws.ctx, &filesync.PutParams{
				Root:      args[0],
				Recursive: recursive,
				DestRoot:  dest,
				Name:      name,
				Include:   include,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printFailures(cmd.ErrOrStderr(), res.Failed, res.Warning)
			fmt.Fprintf(out, "%s %d files, %s\n",
				green.Render("Stored"), res.Snapshot.Len(), humanize.IBytes(res.Snapshot.Entries.TotalSize()))
			fmt.Fprintln(out, address.NewURL(res.Snapshot.Address, ws.Base()).String())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Stable container name; a second put with the same name fails")
	cmd.Flags().StringVar(&dest, "dest", "", "Path prefix for every file inside the container")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Descend into subdirectories")
	cmd.Flags().StringArrayVarP(&include, "include", "i", nil, `Only store files matching these globs, e.g. "**/*.csv"`)
	return cmd
}

func printFailures(w io.Writer, failed []filesync.FailedFile, warning error) {
	for _, f := range failed {
		fmt.Fprintf(w, "%s %s\n", red.Render("FAILED"), f.Error())
	}
	if warning != nil {
		fmt.Fprintf(w, "%s %s\n", gray.Render("WARNING"), warning)
	}
}

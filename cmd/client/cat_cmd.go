package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/container"
	"github.com/openmined/syftfiles/internal/filesync"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(newCatCmd())
}

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func newCatCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "cat <sfc-url>",
		Short: "Print a blob, a file inside a container, or a container listing",
		Example: `  syftfiles cat sfc://bafk...
  syftfiles cat sfc://bagu.../docs/readme.md
  syftfiles cat "sfc://bagu...?v=2" -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			target, err := ws.service.Resolve(ws.ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch target.Kind {
			case filesync.TargetBlob:
				_, err = out.Write(target.Data)
				return err

			case filesync.TargetContainerPath:
				data, err := ws.service.Fetch(ws.ctx, target.Entry)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err

			default:
				switch output {
				case outputTable:
					return printListing(out, target.Snapshot, ws.Base())
				case outputJSON:
					data, err := container.MarshalFileMap(target.Snapshot.Version, target.Snapshot.Entries)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				case outputYAML:
					return printYAML(out, target.Snapshot, ws.Base())
				default:
					return fmt.Errorf("unknown output format %q", output)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Container listing format (table, json, yaml)")
	return cmd
}

func printListing(w io.Writer, snap *container.Snapshot, base address.Base) error {
	fmt.Fprintf(w, "%s version %d, %d files, %s\n",
		address.NewURL(snap.Address, base).String(), snap.Version, snap.Len(), humanize.IBytes(snap.Entries.TotalSize()))

	if snap.Len() == 0 {
		return nil
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("PATH", "SIZE", "MODIFIED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lightGray
			}
			return lipgloss.NewStyle()
		})
	for _, e := range snap.Entries.Sorted() {
		t.Row(e.Path, humanize.IBytes(e.Size), humanize.Time(e.Modified))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

type yamlListing struct {
	URL     string      `yaml:"url"`
	Version uint64      `yaml:"version"`
	Files   int         `yaml:"files"`
	Size    uint64      `yaml:"size"`
	Entries []yamlEntry `yaml:"entries"`
}

type yamlEntry struct {
	Path     string            `yaml:"path"`
	Link     string            `yaml:"link"`
	Size     uint64            `yaml:"size"`
	Created  time.Time         `yaml:"created"`
	Modified time.Time         `yaml:"modified"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

func printYAML(w io.Writer, snap *container.Snapshot, base address.Base) error {
	listing := yamlListing{
		URL:     address.NewURL(snap.Address, base).WithVersion(snap.Version).String(),
		Version: snap.Version,
		Files:   snap.Len(),
		Size:    snap.Entries.TotalSize(),
		Entries: make([]yamlEntry, 0, snap.Len()),
	}
	for _, e := range snap.Entries.Sorted() {
		link, err := address.Encode(e.Link, base)
		if err != nil {
			return err
		}
		listing.Entries = append(listing.Entries, yamlEntry{
			Path:     e.Path,
			Link:     link,
			Size:     e.Size,
			Created:  e.Created,
			Modified: e.Modified,
			Metadata: e.Metadata,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(listing); err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	return enc.Close()
}

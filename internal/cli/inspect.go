package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/cperrin88/wikidumps/internal/logger"
	"github.com/cperrin88/wikidumps/pkg/archive"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect DIR",
		Short: "Identify the format of downloaded dump files",
		Long: `Walk DIR and identify the compression format of every file from its
header. Files whose content does not match their extension, such as an error
page saved under a .bz2 name, are flagged.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0])
		},
	}

	return cmd
}

func runInspect(cmd *cobra.Command, dir string) error {
	entries, err := archive.NewInspector(afero.NewOsFs()).Inspect(cmd.Context(), dir)
	if err != nil {
		return err
	}

	printEntries(cmd.OutOrStdout(), entries)

	mismatched := 0
	for _, e := range entries {
		if e.Mismatch || e.Err != nil {
			mismatched++
			logger.Warn("Suspicious file", logger.Fields{"path": e.Path, "format": formatName(e)})
		}
	}
	logger.Info("Inspection finished", logger.Fields{"files": len(entries), "suspicious": mismatched})
	return nil
}

func printEntries(w io.Writer, entries []archive.Entry) {
	tabWriter := tabwriter.NewWriter(w, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "PATH\tSIZE\tFORMAT\tNOTE")
	_, _ = fmt.Fprintln(tabWriter, "----\t----\t------\t----")
	for _, e := range entries {
		note := ""
		switch {
		case e.Err != nil:
			note = e.Err.Error()
		case e.Mismatch:
			note = "content does not match extension"
		}
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\t%s\t%s\n", e.Path, strconv.FormatInt(e.Size, 10), formatName(e), note)
	}
	_ = tabWriter.Flush()

	summary := archive.Summary(entries)
	formats := make([]string, 0, len(summary))
	for f := range summary {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	_, _ = fmt.Fprintln(w)
	for _, f := range formats {
		_, _ = fmt.Fprintf(w, "%s: %d\n", f, summary[f])
	}
}

func formatName(e archive.Entry) string {
	if !e.Known() {
		return "unknown"
	}
	return e.Format
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"campaignlab.ai/internal/persistence/archive"
	"campaignlab.ai/internal/persistence/indexdb"
	persistlog "campaignlab.ai/internal/persistence/log"
)

var statsDBPath string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the decision logs and, when available, the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "log dir: %s\n", cfg.LogDir)
		for _, name := range []string{persistlog.DecisionsFile, persistlog.OutcomesFile} {
			path := filepath.Join(cfg.LogDir, name)
			fi, err := os.Stat(path)
			if err != nil {
				fmt.Fprintf(out, "  %-16s missing\n", name)
				continue
			}
			lines := 0
			if err := persistlog.ScanFile(path, func(int, []byte) error { lines++; return nil }); err != nil {
				return err
			}
			fmt.Fprintf(out, "  %-16s %s lines, %s, modified %s\n", name,
				humanize.Comma(int64(lines)), humanize.Bytes(uint64(fi.Size())), humanize.Time(fi.ModTime()))
		}

		path := statsDBPath
		if path == "" {
			path = cfg.IndexDB
		}
		if path == "" {
			return nil
		}
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(out, "index %s not found\n", path)
			return nil
		}
		idx, err := indexdb.OpenSQLite(path, indexdb.WithLogger(logger.Named("index")))
		if err != nil {
			return err
		}
		defer idx.Close()
		return printIndex(cmd, out, idx)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDBPath, "db", "", "index database path (default: index_db)")
}

func printIndex(cmd *cobra.Command, out io.Writer, idx *indexdb.SQLiteIndex) error {
	ctx := cmd.Context()
	dc, err := idx.DecisionCounts(ctx)
	if err != nil {
		return err
	}
	oc, err := idx.OutcomeCounts(ctx)
	if err != nil {
		return err
	}
	durs, err := idx.Durations(ctx)
	if err != nil {
		return err
	}
	seasons, err := idx.Seasons(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nDECISION\tCOUNT")
	for _, c := range dc {
		fmt.Fprintf(tw, "%s\t%s\n", c.Type, humanize.Comma(int64(c.Count)))
	}
	fmt.Fprintln(tw, "\nOUTCOME\tCOUNT")
	for _, c := range oc {
		fmt.Fprintf(tw, "%s\t%s\n", c.Type, humanize.Comma(int64(c.Count)))
	}
	fmt.Fprintln(tw, "\nDECISION\tOUTCOME\tCOUNT\tMEAN HOURS")
	for _, d := range durs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\n", d.DecisionType, d.OutcomeType, humanize.Comma(int64(d.Count)), d.MeanHours)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range seasons {
		if meta, err := archive.ReadMeta(cfg.LogDir, s); err == nil {
			fmt.Fprintf(out, "season %d archived at %s: %s decisions, %s outcomes\n",
				s, meta.Label, humanize.Comma(int64(meta.DecisionLines)), humanize.Comma(int64(meta.OutcomeLines)))
		}
	}
	return nil
}

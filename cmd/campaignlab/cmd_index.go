package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignlab.ai/internal/logcheck"
	"campaignlab.ai/internal/persistence/indexdb"
	persistlog "campaignlab.ai/internal/persistence/log"
)

var indexDBPath string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load the decision logs into the SQLite index",
	Long: `Ingests decisions.jsonl and outcomes.jsonl (plain or .zst) from the log
directory into a SQLite database. Ingesting the same logs twice adds nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := indexDBPath
		if path == "" {
			path = cfg.IndexDB
		}
		if path == "" {
			path = filepath.Join(cfg.LogDir, "index.sqlite")
		}
		idx, err := indexdb.OpenSQLite(path, indexdb.WithLogger(logger.Named("index")))
		if err != nil {
			return err
		}
		defer idx.Close()

		for _, name := range []string{persistlog.DecisionsFile, persistlog.OutcomesFile} {
			file := logcheck.FindLog(cfg.LogDir, name)
			if file == "" {
				logger.Warn("log missing", zap.String("file", name))
				continue
			}
			res, err := idx.IngestFile(cmd.Context(), file)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d decisions, %d outcomes, %d skipped\n",
				filepath.Base(file), res.Decisions, res.Outcomes, res.Skipped)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "index: %s\n", path)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDBPath, "db", "", "index database path (default: index_db or <dir>/index.sqlite)")
}

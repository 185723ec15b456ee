package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"campaignlab.ai/internal/persistence/archive"
)

var archiveSeason int

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Write a compressed copy of the current logs for one season",
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveSeason < 0 {
			return errors.New("--season is required")
		}
		meta, err := archive.ArchiveSeason(cfg.LogDir, archiveSeason, fmt.Sprintf("manual season %d", archiveSeason))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d decisions, %d outcomes\n",
			archive.Dir(cfg.LogDir, archiveSeason), meta.DecisionLines, meta.OutcomeLines)
		return nil
	},
}

func init() {
	archiveCmd.Flags().IntVar(&archiveSeason, "season", -1, "season number to archive")
}

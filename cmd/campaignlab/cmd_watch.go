package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	persistlog "campaignlab.ai/internal/persistence/log"
)

var watchFromStart bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print decisions and outcomes as they are appended to the logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := persistlog.NewFollower(cfg.LogDir, watchFromStart, logger.Named("watch"))
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		out := cmd.OutOrStdout()
		err = f.Run(ctx, func(name string, line []byte) {
			fmt.Fprintln(out, summarize(name, line))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false, "print lines already in the logs first")
}

func summarize(name string, line []byte) string {
	switch name {
	case persistlog.DecisionsFile:
		var d persistlog.DecisionRecord
		if err := json.Unmarshal(line, &d); err != nil {
			return "decision: " + string(line)
		}
		target := "-"
		if d.TargetID != nil {
			target = *d.TargetID
		}
		return fmt.Sprintf("%s  %-10s %-17s -> %s  [%s]", d.Timestamp, d.PartyID, d.DecisionType, target, d.DecisionID)
	default:
		var o persistlog.OutcomeRecord
		if err := json.Unmarshal(line, &o); err != nil {
			return "outcome: " + string(line)
		}
		note := ""
		if o.Notes != nil {
			note = " (" + *o.Notes + ")"
		}
		return fmt.Sprintf("%s  %-11s after %.1fh%s  [%s]", o.ResolutionTime, o.OutcomeType, o.DurationHours, note, o.DecisionID)
	}
}

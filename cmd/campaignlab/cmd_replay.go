package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"campaignlab.ai/internal/lab"
	"campaignlab.ai/internal/persistence/snapshot"
)

var (
	replaySnapshot string
	replayDays     int
	replayRuns     int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Check that a snapshot replays to the same decisions every time",
	Long: `Resumes the snapshot --runs times, simulates --days days from it in a scratch
directory and compares digests of the decisions and outcomes produced. The
live logs are not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := replaySnapshot
		if path == "" {
			path = cfg.SnapshotPath
		}
		if path == "" {
			return errors.New("--snapshot is required")
		}
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "snapshot v%d run=%s at %s\n", h.Version, h.RunID, h.Label)

		var first lab.ReplayResult
		for i := 0; i < replayRuns; i++ {
			res, err := lab.Replay(lab.ConfigFrom(cfg), path, replayDays)
			if err != nil {
				return fmt.Errorf("replay %d: %w", i+1, err)
			}
			fmt.Fprintf(out, "run %d: %d decisions, %d outcomes, digest %s\n", i+1, res.Decisions, res.Outcomes, res.Digest[:16])
			if i == 0 {
				first = res
			} else if res != first {
				return fmt.Errorf("replay diverged on run %d", i+1)
			}
		}
		fmt.Fprintln(out, "replay ok")
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replaySnapshot, "snapshot", "", "snapshot to replay (default: snapshot_path)")
	replayCmd.Flags().IntVar(&replayDays, "days", 30, "campaign days to simulate per run")
	replayCmd.Flags().IntVar(&replayRuns, "runs", 2, "number of replays to compare")
}

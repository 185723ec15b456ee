package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignlab.ai/internal/lab"
	"campaignlab.ai/internal/persistence/indexdb"
	persistlog "campaignlab.ai/internal/persistence/log"
	"campaignlab.ai/internal/sim/world"
)

var (
	runDays     int
	runRealtime time.Duration
	runResume   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a campaign and record inferred decisions",
	Long: `Runs the campaign for --days days. Without --realtime the days are
simulated back to back; with it one sampling interval passes per --realtime of
wall time until --days elapse or the process is interrupted.

With --resume the run continues from the configured snapshot_path.`,
	RunE: runLab,
}

func init() {
	runCmd.Flags().IntVar(&runDays, "days", 30, "campaign days to simulate (0 with --realtime runs until interrupted)")
	runCmd.Flags().DurationVar(&runRealtime, "realtime", 0, "wall time per sampling interval (0 runs as fast as possible)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume from snapshot_path")
}

func runLab(cmd *cobra.Command, args []string) error {
	var writerOpts []persistlog.Option
	writerOpts = append(writerOpts, persistlog.WithLogger(logger.Named("writer")))

	var idx *indexdb.SQLiteIndex
	if cfg.IndexDB != "" {
		var err error
		idx, err = indexdb.OpenSQLite(cfg.IndexDB, indexdb.WithLogger(logger.Named("index")))
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer func() {
			if err := idx.Close(); err != nil {
				logger.Warn("close index", zap.Error(err))
			}
		}()
		writerOpts = append(writerOpts, persistlog.WithMirror(idx))
	}
	writer := persistlog.NewWriter(persistlog.StaticDir(cfg.LogDir), writerOpts...)

	labCfg := lab.ConfigFrom(cfg)
	labCfg.RunID = uuid.NewString()
	opts := []lab.Option{lab.WithLogger(logger)}
	if idx != nil {
		opts = append(opts, lab.WithSeasonIndex(idx))
	}

	var r *lab.Runner
	if runResume {
		if cfg.SnapshotPath == "" {
			return errors.New("--resume needs snapshot_path in the config")
		}
		var err error
		if r, err = lab.Resume(labCfg, cfg.SnapshotPath, writer, opts...); err != nil {
			return err
		}
		logger.Info("resumed", zap.String("at", r.World().Now().String()))
	} else {
		r = lab.New(labCfg, world.New(lab.WorldConfig(cfg)), writer, opts...)
	}

	start := time.Now()
	var err error
	if runRealtime > 0 {
		ctx, stop := signalContext()
		defer stop()
		steps := 0
		if runDays > 0 {
			steps = int(float64(runDays*24) / labCfg.SampleInterval.Hours())
		}
		err = withoutCancel(r.Run(ctx, runRealtime, steps))
	} else {
		err = r.RunDays(runDays)
		if ferr := writer.Flush(); ferr != nil {
			err = errors.Join(err, ferr)
		}
		if cfg.SnapshotPath != "" {
			if serr := r.SaveSnapshot(cfg.SnapshotPath); serr != nil {
				err = errors.Join(err, serr)
			}
		}
	}

	st := r.Stats()
	logger.Info("run finished",
		zap.String("at", st.Now.String()),
		zap.Int("steps", st.Steps),
		zap.Int64("decisions", st.Written.Decisions),
		zap.Int64("outcomes", st.Written.Outcomes),
		zap.Int("active", st.Active),
		zap.Duration("elapsed", time.Since(start)))
	return err
}

// withoutCancel drops an interrupt from err while keeping any flush or snapshot failure joined to it.
func withoutCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			var keep []error
			for _, e := range joined.Unwrap() {
				if !errors.Is(e, context.Canceled) {
					keep = append(keep, e)
				}
			}
			return errors.Join(keep...)
		}
		return nil
	}
	return err
}

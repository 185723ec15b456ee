// Package lab wires the campaign world to the decision engine and the durable logs, and drives
// them tick by tick.
package lab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campaignlab.ai/internal/features"
	"campaignlab.ai/internal/persistence/archive"
	persistlog "campaignlab.ai/internal/persistence/log"
	"campaignlab.ai/internal/persistence/snapshot"
	"campaignlab.ai/internal/resolution"
	"campaignlab.ai/internal/sim/simtime"
	"campaignlab.ai/internal/sim/tuning"
	"campaignlab.ai/internal/sim/world"
	"campaignlab.ai/internal/tracking"
)

type Config struct {
	SampleInterval   simtime.Duration
	HostileRadius    float64
	FlushEvery       simtime.Duration
	SeasonLengthDays int
	ArchiveSeasons   bool

	SnapshotPath  string
	SnapshotEvery simtime.Duration
	RunID         string
}

func ConfigFrom(t tuning.Tuning) Config {
	return Config{
		SampleInterval:   simtime.Duration(t.SampleIntervalHours),
		HostileRadius:    t.HostileRadius,
		FlushEvery:       simtime.Duration(t.FlushEveryHours),
		SeasonLengthDays: t.SeasonLengthDays,
		ArchiveSeasons:   t.ArchiveSeasons,
		SnapshotPath:     t.SnapshotPath,
		SnapshotEvery:    simtime.Duration(t.SnapshotEveryDays) * simtime.Day,
	}
}

// WorldConfig maps the tuning file's world section.
func WorldConfig(t tuning.Tuning) world.Config {
	return world.Config{
		Seed:                  t.World.Seed,
		Factions:              t.World.Factions,
		SettlementsPerFaction: t.World.SettlementsPerFaction,
		Parties:               t.World.Parties,
		MapSize:               t.World.MapSize,
		GameVersion:           t.World.GameVersion,
	}
}

func (c *Config) normalize() {
	if c.SampleInterval <= 0 {
		c.SampleInterval = simtime.Day
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = c.SampleInterval
	}
	if c.SeasonLengthDays <= 0 {
		c.SeasonLengthDays = simtime.SeasonDays
	}
}

// SeasonIndexer records archived seasons.
type SeasonIndexer interface {
	RecordSeason(season int, archivePath string, decisions, outcomes int)
}

type Runner struct {
	cfg      Config
	world    *world.World
	engine   *tracking.Engine
	resolver *resolution.Resolver
	writer   *persistlog.Writer
	index    SeasonIndexer
	log      *zap.Logger

	gate         *FlushGate
	season       int
	lastSnapshot int64
	steps        int
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

func WithSeasonIndex(idx SeasonIndexer) Option {
	return func(r *Runner) { r.index = idx }
}

// New wires a runner around w. Every tracked party is observed once so that the first step can
// already infer decisions.
func New(cfg Config, w *world.World, writer *persistlog.Writer, opts ...Option) *Runner {
	r := newRunner(cfg, w, writer, opts)
	r.engine.OnTick(r.agents())
	return r
}

func newRunner(cfg Config, w *world.World, writer *persistlog.Writer, opts []Option) *Runner {
	cfg.normalize()
	r := &Runner{cfg: cfg, world: w, writer: writer, log: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	r.engine = tracking.New(w, features.NewBuilder(w), writer, tracking.Config{
		SampleInterval: cfg.SampleInterval,
		HostileRadius:  cfg.HostileRadius,
	}, tracking.WithLogger(r.log.Named("engine")))
	r.resolver = resolution.New(r.engine, r.log.Named("resolver"))
	w.Subscribe(r.resolver.Listener())

	now := w.Now()
	r.gate = NewFlushGate(r.period(now))
	r.season = r.seasonOf(now)
	r.lastSnapshot = r.snapshotPeriod(now)
	return r
}

// Resume restores a runner from a snapshot written by SaveSnapshot.
func Resume(cfg Config, path string, writer *persistlog.Writer, opts ...Option) (*Runner, error) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	w, err := world.Restore(snap.World)
	if err != nil {
		return nil, fmt.Errorf("restore world: %w", err)
	}
	r := newRunner(cfg, w, writer, opts)
	if err := r.engine.Import(snap.Engine); err != nil {
		return nil, fmt.Errorf("restore engine: %w", err)
	}
	r.gate = NewFlushGate(snap.LastFlushPeriod)
	if snap.Header.RunID != "" && r.cfg.RunID == "" {
		r.cfg.RunID = snap.Header.RunID
	}
	return r, nil
}

func (r *Runner) World() *world.World        { return r.world }
func (r *Runner) Engine() *tracking.Engine   { return r.engine }
func (r *Runner) Writer() *persistlog.Writer { return r.writer }

func (r *Runner) period(t simtime.Time) int64 {
	return int64(t.Hours() / r.cfg.FlushEvery.Hours())
}

func (r *Runner) seasonOf(t simtime.Time) int {
	return t.Day() / r.cfg.SeasonLengthDays
}

func (r *Runner) snapshotPeriod(t simtime.Time) int64 {
	if r.cfg.SnapshotEvery <= 0 {
		return 0
	}
	return int64(t.Hours() / r.cfg.SnapshotEvery.Hours())
}

func (r *Runner) agents() []world.Agent {
	parties := r.world.Parties()
	out := make([]world.Agent, 0, len(parties))
	for _, p := range parties {
		out = append(out, p)
	}
	return out
}

// advance moves the world one sampling interval and observes every party in ID order. World
// events raised while advancing are resolved before the observation.
func (r *Runner) advance() {
	r.world.Advance(r.cfg.SampleInterval)
	r.engine.OnTick(r.agents())
	r.steps++
}

type maintenanceReq struct {
	period int64
	season int
	label  string
}

func (r *Runner) maintenanceFor(now simtime.Time) maintenanceReq {
	return maintenanceReq{period: r.period(now), season: r.seasonOf(now), label: now.String()}
}

// Step runs one tick followed by the maintenance step.
func (r *Runner) Step() error {
	r.advance()
	if err := r.snapshotIfDue(); err != nil {
		r.log.Error("snapshot", zap.Error(err))
	}
	return r.Maintain()
}

// RunDays steps until days campaign days have passed.
func (r *Runner) RunDays(days int) error {
	target := r.world.Now().Add(simtime.Duration(days) * simtime.Day)
	var errs []error
	for r.world.Now() < target {
		if err := r.Step(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Maintain is the end-of-period step for the current campaign time. Calling it again within the
// same period does nothing.
func (r *Runner) Maintain() error {
	return r.maintain(r.maintenanceFor(r.world.Now()))
}

func (r *Runner) maintain(req maintenanceReq) error {
	ran, err := r.gate.Once(req.period, r.writer.Flush)
	if err != nil {
		r.log.Error("flush decision logs", zap.Int64("period", req.period), zap.Error(err))
	}
	if req.season <= r.season {
		return err
	}
	if !ran {
		// Season boundary inside a flush period.
		if ferr := r.writer.Flush(); ferr != nil {
			r.log.Error("flush decision logs", zap.Int("season", r.season), zap.Error(ferr))
			err = errors.Join(err, ferr)
		}
	}
	finished := r.season
	r.season = req.season
	if r.cfg.ArchiveSeasons && r.writer.Dir() != "" {
		meta, aerr := archive.ArchiveSeason(r.writer.Dir(), finished, req.label)
		if aerr != nil {
			r.log.Error("archive season", zap.Int("season", finished), zap.Error(aerr))
			return errors.Join(err, aerr)
		}
		if r.index != nil {
			r.index.RecordSeason(finished, archive.Dir(r.writer.Dir(), finished), meta.DecisionLines, meta.OutcomeLines)
		}
		r.log.Info("season archived", zap.Int("season", finished), zap.Int("decisions", meta.DecisionLines), zap.Int("outcomes", meta.OutcomeLines))
	}
	return err
}

func (r *Runner) snapshotIfDue() error {
	snap, ok := r.dueSnapshot()
	if !ok {
		return nil
	}
	return snapshot.WriteSnapshot(r.cfg.SnapshotPath, snap)
}

// Snapshot captures the resumable state. It must be called from the ticking goroutine.
func (r *Runner) Snapshot() (snapshot.SnapshotV1, error) {
	ws, err := r.world.Export()
	if err != nil {
		return snapshot.SnapshotV1{}, err
	}
	last, _ := r.gate.Last()
	now := r.world.Now()
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			RunID:   r.cfg.RunID,
			Hours:   now.Hours(),
			Label:   now.String(),
		},
		SampleIntervalHours: r.cfg.SampleInterval.Hours(),
		HostileRadius:       r.engine.Config().HostileRadius,
		LastFlushPeriod:     last,
		World:               ws,
		Engine:              r.engine.Export(),
	}, nil
}

func (r *Runner) SaveSnapshot(path string) error {
	snap, err := r.Snapshot()
	if err != nil {
		return err
	}
	return snapshot.WriteSnapshot(path, snap)
}

// Run ticks once per tickEvery of wall time until ctx is done or steps ticks ran (steps <= 0
// means no limit). Maintenance and snapshot writes run on their own goroutines so that a slow
// flush never delays a tick; the tick loop only enqueues. Pending records are flushed before
// Run returns, and every flush or archive failure during the run is returned joined with the
// context error.
func (r *Runner) Run(ctx context.Context, tickEvery time.Duration, steps int) error {
	if tickEvery <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	maint := make(chan maintenanceReq, 1)
	snaps := make(chan snapshot.SnapshotV1, 1)

	var g errgroup.Group
	g.Go(func() error {
		defer close(maint)
		defer close(snaps)
		ticker := time.NewTicker(tickEvery)
		defer ticker.Stop()
		for n := 0; steps <= 0 || n < steps; n++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			r.advance()
			if snap, ok := r.dueSnapshot(); ok {
				select {
				case snaps <- snap:
				default:
					r.log.Warn("snapshot writer busy, snapshot skipped", zap.String("at", snap.Header.Label))
				}
			}
			req := r.maintenanceFor(r.world.Now())
			select {
			case maint <- req:
			default:
				// A queued request flushes everything enqueued so far.
			}
		}
		return nil
	})
	// Read only after g.Wait.
	var maintErrs []error
	g.Go(func() error {
		for req := range maint {
			if err := r.maintain(req); err != nil {
				maintErrs = append(maintErrs, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		for snap := range snaps {
			if err := snapshot.WriteSnapshot(r.cfg.SnapshotPath, snap); err != nil {
				r.log.Error("write snapshot", zap.Error(err))
			}
		}
		return nil
	})
	errs := append([]error{g.Wait()}, maintErrs...)

	// The last request may have been skipped while an older one was queued.
	errs = append(errs, r.maintain(r.maintenanceFor(r.world.Now())), r.writer.Flush())
	if r.cfg.SnapshotPath != "" {
		errs = append(errs, r.SaveSnapshot(r.cfg.SnapshotPath))
	}
	return errors.Join(errs...)
}

func (r *Runner) dueSnapshot() (snapshot.SnapshotV1, bool) {
	if r.cfg.SnapshotPath == "" || r.cfg.SnapshotEvery <= 0 {
		return snapshot.SnapshotV1{}, false
	}
	p := r.snapshotPeriod(r.world.Now())
	if p <= r.lastSnapshot {
		return snapshot.SnapshotV1{}, false
	}
	r.lastSnapshot = p
	snap, err := r.Snapshot()
	if err != nil {
		r.log.Error("snapshot", zap.Error(err))
		return snapshot.SnapshotV1{}, false
	}
	return snap, true
}

type Stats struct {
	Steps    int
	Now      simtime.Time
	Active   int
	Resolved int
	Written  persistlog.Totals
}

func (r *Runner) Stats() Stats {
	return Stats{
		Steps:    r.steps,
		Now:      r.world.Now(),
		Active:   r.engine.ActiveCount(),
		Resolved: r.resolver.Resolved(),
		Written:  r.writer.Totals(),
	}
}

// Package indexdb keeps a queryable sqlite copy of the decision logs. The JSONL files stay the
// source of truth; the index may drop records under load and can be rebuilt with IngestFile.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	persistlog "campaignlab.ai/internal/persistence/log"
	"campaignlab.ai/internal/sim/simtime"
)

const schemaVersion = "2"

type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropDecision atomic.Uint64
	dropOutcome  atomic.Uint64
	dropSeason   atomic.Uint64
}

type reqKind int

const (
	reqDecision reqKind = iota + 1
	reqOutcome
	reqSeason
	reqSync
)

type req struct {
	kind reqKind

	decision persistlog.DecisionRecord
	outcome  persistlog.OutcomeRecord
	season   seasonRow
	done     chan struct{}
}

type seasonRow struct {
	Season     int
	Path       string
	Decisions  int
	Outcomes   int
	RecordedAt string
}

type Option func(*SQLiteIndex)

func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteIndex) {
		if l != nil {
			s.log = l
		}
	}
}

// WithQueueSize bounds the pending write queue; records beyond it are dropped.
func WithQueueSize(n int) Option {
	return func(s *SQLiteIndex) {
		if n > 0 {
			s.ch = make(chan req, n)
		}
	}
}

func OpenSQLite(path string, opts ...Option) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: zap.NewNop(),
		ch:  make(chan req, 65536),
	}
	for _, o := range opts {
		o(s)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			decision_id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			campaign_hours REAL,
			party_id TEXT NOT NULL,
			faction_id TEXT,
			decision_type TEXT NOT NULL,
			target_id TEXT,
			context_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_party ON decisions(party_id, campaign_hours);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_type ON decisions(decision_type);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			decision_id TEXT NOT NULL,
			outcome_type TEXT NOT NULL,
			resolution_time TEXT NOT NULL,
			duration_hours REAL NOT NULL,
			troops_lost INTEGER NOT NULL,
			gold_change INTEGER NOT NULL,
			morale_change INTEGER NOT NULL,
			target_captured INTEGER NOT NULL,
			party_destroyed INTEGER NOT NULL,
			overridden_by TEXT,
			notes TEXT,
			PRIMARY KEY (decision_id, outcome_type, resolution_time)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_type ON outcomes(outcome_type);`,
		`CREATE TABLE IF NOT EXISTS seasons (
			season INTEGER PRIMARY KEY,
			archive_path TEXT NOT NULL,
			decisions INTEGER NOT NULL,
			outcomes INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// IndexDecision queues r for the writer goroutine. It never blocks.
func (s *SQLiteIndex) IndexDecision(r persistlog.DecisionRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqDecision, decision: r}:
	default:
		s.dropDecision.Add(1)
		s.log.Debug("index queue full, decision dropped", zap.String("decision", r.DecisionID))
	}
}

func (s *SQLiteIndex) IndexOutcome(r persistlog.OutcomeRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqOutcome, outcome: r}:
	default:
		s.dropOutcome.Add(1)
		s.log.Debug("index queue full, outcome dropped", zap.String("decision", r.DecisionID))
	}
}

// RecordSeason notes an archived season.
func (s *SQLiteIndex) RecordSeason(season int, archivePath string, decisions, outcomes int) {
	if s == nil || s.closed.Load() {
		return
	}
	if season < 0 || archivePath == "" {
		return
	}
	r := seasonRow{
		Season:     season,
		Path:       archivePath,
		Decisions:  decisions,
		Outcomes:   outcomes,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSeason, season: r}:
	default:
		s.dropSeason.Add(1)
	}
}

// Sync waits until everything queued before the call is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropDecisionTotal uint64
	DropOutcomeTotal  uint64
	DropSeasonTotal   uint64
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropDecisionTotal: s.dropDecision.Load(),
		DropOutcomeTotal:  s.dropOutcome.Load(),
		DropSeasonTotal:   s.dropSeason.Load(),
	}
}

const (
	insertDecisionSQL = `INSERT OR REPLACE INTO decisions(decision_id,timestamp,campaign_hours,party_id,faction_id,decision_type,target_id,context_json) VALUES(?,?,?,?,?,?,?,?)`
	insertOutcomeSQL  = `INSERT OR REPLACE INTO outcomes(decision_id,outcome_type,resolution_time,duration_hours,troops_lost,gold_change,morale_change,target_captured,party_destroyed,overridden_by,notes) VALUES(?,?,?,?,?,?,?,?,?,?,?)`
	insertSeasonSQL   = `INSERT OR REPLACE INTO seasons(season,archive_path,decisions,outcomes,recorded_at) VALUES(?,?,?,?,?)`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execDecision(ctx context.Context, ex execer, stmt string, r persistlog.DecisionRecord) error {
	ctxJSON, err := json.Marshal(r.Context)
	if err != nil {
		return err
	}
	var hours any
	if t, err := simtime.Parse(r.Timestamp); err == nil {
		hours = t.Hours()
	}
	_, err = ex.ExecContext(ctx, stmt,
		r.DecisionID,
		r.Timestamp,
		hours,
		r.PartyID,
		nullable(r.FactionID),
		r.DecisionType,
		nullable(r.TargetID),
		string(ctxJSON),
	)
	return err
}

func execOutcome(ctx context.Context, ex execer, stmt string, r persistlog.OutcomeRecord) error {
	_, err := ex.ExecContext(ctx, stmt,
		r.DecisionID,
		r.OutcomeType,
		r.ResolutionTime,
		r.DurationHours,
		r.TroopsLost,
		r.GoldChange,
		r.MoraleChange,
		boolInt(r.TargetCaptured),
		boolInt(r.PartyDestroyed),
		nullable(r.OverriddenByDecisionType),
		nullable(r.Notes),
	)
	return err
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Warn("index begin tx", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("index commit", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.Warn("index write", zap.Error(err))
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqDecision:
			err = execDecision(ctx, tx, insertDecisionSQL, r.decision)
		case reqOutcome:
			err = execOutcome(ctx, tx, insertOutcomeSQL, r.outcome)
		case reqSeason:
			se := r.season
			_, err = tx.ExecContext(ctx, insertSeasonSQL, se.Season, se.Path, se.Decisions, se.Outcomes, se.RecordedAt)
		}
		if err != nil {
			rollback(err)
			continue
		}
		opCount++
		flushIfNeeded()
	}

	commit()
}

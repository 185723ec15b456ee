package indexdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"campaignlab.ai/internal/decision"
	persistlog "campaignlab.ai/internal/persistence/log"
	"campaignlab.ai/internal/sim/simtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func strp(s string) *string { return &s }

func decisionRec(id, kind string) persistlog.DecisionRecord {
	return persistlog.DecisionRecord{
		DecisionID:   id,
		Timestamp:    "Summer 2, 1084",
		PartyID:      "lord_1",
		FactionID:    strp("empire"),
		DecisionType: kind,
		TargetID:     strp("town_1"),
		Context:      decision.NewContextBuilder(1).Add("troopCount", decision.Int(12)).Build(),
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.log = zap.NewNop()
	s.ch <- req{kind: reqDecision}

	s.IndexDecision(decisionRec("a", "JoinArmy"))
	s.IndexOutcome(persistlog.OutcomeRecord{DecisionID: "a"})
	s.RecordSeason(1, "/tmp/season_001", 1, 1)

	st := s.Stats()
	if st.DropDecisionTotal != 1 {
		t.Fatalf("DropDecisionTotal=%d want=1", st.DropDecisionTotal)
	}
	if st.DropOutcomeTotal != 1 {
		t.Fatalf("DropOutcomeTotal=%d want=1", st.DropOutcomeTotal)
	}
	if st.DropSeasonTotal != 1 {
		t.Fatalf("DropSeasonTotal=%d want=1", st.DropSeasonTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_MirrorAndCounts(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	idx.IndexDecision(decisionRec("a", "JoinArmy"))
	idx.IndexDecision(decisionRec("b", "JoinArmy"))
	idx.IndexDecision(decisionRec("c", "RaidVillage"))
	idx.IndexOutcome(persistlog.OutcomeRecord{DecisionID: "a", OutcomeType: "Aborted", ResolutionTime: "Summer 3, 1084", DurationHours: 24})
	idx.IndexOutcome(persistlog.OutcomeRecord{DecisionID: "b", OutcomeType: "Aborted", ResolutionTime: "Summer 4, 1084", DurationHours: 48})
	idx.IndexOutcome(persistlog.OutcomeRecord{DecisionID: "c", OutcomeType: "Overridden", ResolutionTime: "Summer 2, 1084", OverriddenByDecisionType: strp("JoinArmy")})
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	dc, err := idx.DecisionCounts(ctx)
	if err != nil {
		t.Fatalf("DecisionCounts: %v", err)
	}
	if len(dc) != 2 || dc[0] != (TypeCount{Type: "JoinArmy", Count: 2}) || dc[1] != (TypeCount{Type: "RaidVillage", Count: 1}) {
		t.Fatalf("decision counts: %+v", dc)
	}
	oc, err := idx.OutcomeCounts(ctx)
	if err != nil {
		t.Fatalf("OutcomeCounts: %v", err)
	}
	if len(oc) != 2 || oc[0].Type != "Aborted" || oc[0].Count != 2 {
		t.Fatalf("outcome counts: %+v", oc)
	}
	ds, err := idx.Durations(ctx)
	if err != nil {
		t.Fatalf("Durations: %v", err)
	}
	if len(ds) != 2 || ds[0].DecisionType != "JoinArmy" || ds[0].MeanHours != 36 {
		t.Fatalf("durations: %+v", ds)
	}
}

func TestSQLiteIndex_RecordSeason(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordSeason(3, "/abs/archives/season_003", 10, 8)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		season    int
		archive   string
		decisions int
		outcomes  int
	)
	row := db.QueryRow(`SELECT season,archive_path,decisions,outcomes FROM seasons WHERE season=3`)
	if err := row.Scan(&season, &archive, &decisions, &outcomes); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if season != 3 || archive != "/abs/archives/season_003" || decisions != 10 || outcomes != 8 {
		t.Fatalf("row mismatch: season=%d archive=%q decisions=%d outcomes=%d", season, archive, decisions, outcomes)
	}
}

func TestSQLiteIndex_IngestWriterOutput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	w := persistlog.NewWriter(persistlog.StaticDir(dir))
	w.EnqueueDecision(&decision.Decision{ID: "d1", Timestamp: simtime.FromDays(1), PartyID: "p", Kind: decision.KindEnterObjective, TargetID: "castle"})
	w.EnqueueDecision(&decision.Decision{ID: "d2", Timestamp: simtime.FromDays(2), PartyID: "p", Kind: decision.KindJoinGroup, TargetID: "lord"})
	w.EnqueueOutcome(&decision.Outcome{DecisionID: "d1", Kind: decision.OutcomeOverridden, ResolvedAt: simtime.FromDays(2), Duration: simtime.Day, OverriddenBy: decision.Some(decision.KindJoinGroup)})
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, persistlog.OutcomesFile), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("not json\n")
	_ = f.Close()

	idx, err := OpenSQLite(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	for i := 0; i < 2; i++ {
		res, err := idx.IngestFile(ctx, filepath.Join(dir, persistlog.DecisionsFile))
		if err != nil {
			t.Fatalf("IngestFile decisions: %v", err)
		}
		if res.Decisions != 2 {
			t.Fatalf("ingested %d decisions", res.Decisions)
		}
	}
	res, err := idx.IngestFile(ctx, filepath.Join(dir, persistlog.OutcomesFile))
	if err != nil {
		t.Fatalf("IngestFile outcomes: %v", err)
	}
	if res.Outcomes != 1 || res.Skipped != 1 {
		t.Fatalf("ingest result: %+v", res)
	}

	dc, err := idx.DecisionCounts(ctx)
	if err != nil {
		t.Fatalf("DecisionCounts: %v", err)
	}
	total := 0
	for _, c := range dc {
		total += c.Count
	}
	if total != 2 {
		t.Fatalf("re-ingest duplicated rows: %+v", dc)
	}
}

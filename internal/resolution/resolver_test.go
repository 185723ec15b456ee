package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignlab.ai/internal/decision"
	"campaignlab.ai/internal/sim/simtime"
	"campaignlab.ai/internal/sim/world"
	"campaignlab.ai/internal/tracking"
)

type sink struct{ outcomes []*decision.Outcome }

func (s *sink) EnqueueDecision(*decision.Decision) {}
func (s *sink) EnqueueOutcome(o *decision.Outcome) { s.outcomes = append(s.outcomes, o) }

type fixture struct {
	w    *world.World
	e    *tracking.Engine
	r    *Resolver
	sink *sink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := world.NewEmpty(world.Config{Seed: 3})
	w.AddFaction("empire")
	w.AddFaction("sturgia")
	w.DeclareWar("empire", "sturgia")
	w.AddSettlement(world.Settlement{ID: "town", FactionID: "empire", Kind: world.SettlementTown, Pos: world.Vec2{X: 50}})
	w.AddSettlement(world.Settlement{ID: "village", FactionID: "sturgia", Kind: world.SettlementVillage, Pos: world.Vec2{X: 300}})
	for _, id := range []string{"L", "A", "B"} {
		w.AddParty(world.PartySpec{ID: id, FactionID: "empire", Kind: world.PartyLord})
	}
	s := &sink{}
	e := tracking.New(w, nil, s, tracking.DefaultConfig())
	r := New(e, nil)
	w.Subscribe(r.Listener())
	f := &fixture{w: w, e: e, r: r, sink: s}
	f.observeAll()
	return f
}

func (f *fixture) observeAll() {
	for _, p := range f.w.Parties() {
		f.e.Observe(p)
	}
}

func (f *fixture) tick() {
	f.w.Clock().Advance(simtime.Day)
	f.observeAll()
}

func (f *fixture) last() *decision.Outcome {
	if len(f.sink.outcomes) == 0 {
		return nil
	}
	return f.sink.outcomes[len(f.sink.outcomes)-1]
}

func TestArmyDispersedAbortsMembers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.JoinArmy("A", "L"))
	require.NoError(t, f.w.JoinArmy("B", "L"))
	f.tick()
	require.Len(t, f.e.Targeting(decision.KindJoinGroup, "L"), 3)

	require.NoError(t, f.w.DisperseArmy("L"))
	assert.Zero(t, f.e.ActiveCount())
	require.Len(t, f.sink.outcomes, 3)
	for _, o := range f.sink.outcomes {
		assert.Equal(t, decision.OutcomeAborted, o.Kind)
	}
}

func TestArmyJoinedCompletesOnAttach(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.JoinArmy("A", "L"))
	f.tick()
	d, ok := f.e.GetActive("A")
	require.True(t, ok)
	require.Equal(t, decision.KindJoinGroup, d.Kind)
	require.Equal(t, "L", d.TargetID)

	require.NoError(t, f.w.AttachToArmy("A"))
	_, ok = f.e.GetActive("A")
	assert.False(t, ok)
	require.Len(t, f.sink.outcomes, 1)
	o := f.last()
	assert.Equal(t, decision.OutcomeCompleted, o.Kind)
	assert.Equal(t, d.ID, o.DecisionID)
	notes, _ := o.Notes.Get()
	assert.Equal(t, "joined army", notes)
	assert.Equal(t, 1, f.r.Resolved())

	// A second join event for the same party has nothing left to resolve.
	assert.Zero(t, f.r.Handle(world.Event{Kind: world.EventArmyJoined, PartyID: "A", LeaderID: "L"}))
}

func TestArmyJoinedIgnoresOtherLeader(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.JoinArmy("A", "L"))
	f.tick()
	assert.Zero(t, f.r.Handle(world.Event{Kind: world.EventArmyJoined, PartyID: "A", LeaderID: "B"}))
	_, ok := f.e.GetActive("A")
	assert.True(t, ok)
}

func TestArmyLeftAbortsOnlyThatMember(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.JoinArmy("A", "L"))
	f.tick()
	require.NoError(t, f.w.LeaveArmy("A"))
	require.NotNil(t, f.last())
	assert.Equal(t, decision.OutcomeAborted, f.last().Kind)
	_, ok := f.e.GetActive("L")
	assert.True(t, ok)
}

func TestArrivalCompletesMove(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.SetTarget("A", "town"))
	f.tick()
	d, ok := f.e.GetActive("A")
	require.True(t, ok)
	require.Equal(t, decision.KindMoveToObjective, d.Kind)

	require.NoError(t, f.w.EnterSettlement("A", "town"))
	require.Len(t, f.sink.outcomes, 1)
	assert.Equal(t, decision.OutcomeCompleted, f.last().Kind)
	notes, _ := f.last().Notes.Get()
	assert.Equal(t, "arrived", notes)

	f.tick()
	d, ok = f.e.GetActive("A")
	require.True(t, ok)
	assert.Equal(t, decision.KindEnterObjective, d.Kind)
	require.NoError(t, f.w.LeaveSettlement("A"))
	assert.Equal(t, decision.OutcomeCompleted, f.last().Kind)
	assert.Equal(t, d.ID, f.last().DecisionID)
}

func TestLootAndFailedRaid(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.MoveTo("A", world.Vec2{X: 305}))
	require.NoError(t, f.w.MoveTo("B", world.Vec2{X: 295}))
	f.tick()
	require.ElementsMatch(t, []string{"A", "B"}, f.e.Targeting(decision.KindRaidObjective, "village"))

	require.NoError(t, f.w.BeginRaid("B", "village"))
	require.NoError(t, f.w.EndRaid("B"))
	assert.Equal(t, decision.OutcomeAborted, f.last().Kind)

	require.NoError(t, f.w.BeginRaid("A", "village"))
	require.NoError(t, f.w.LootVillage("A", "village"))
	assert.Equal(t, decision.OutcomeCompleted, f.last().Kind)
	assert.True(t, f.last().TargetCaptured)
	assert.Len(t, f.sink.outcomes, 2)
}

func TestCaptureSplitsByFaction(t *testing.T) {
	f := newFixture(t)
	f.w.AddParty(world.PartySpec{ID: "S", FactionID: "sturgia", Kind: world.PartyLord})
	f.e.Observe(mustParty(t, f.w, "S"))
	require.NoError(t, f.w.SetTarget("A", "town"))
	require.NoError(t, f.w.SetTarget("S", "town"))
	f.tick()

	require.NoError(t, f.w.CaptureSettlement("town", "sturgia"))
	require.Len(t, f.sink.outcomes, 2)
	byDecision := map[string]*decision.Outcome{}
	for _, o := range f.sink.outcomes {
		byDecision[o.DecisionID] = o
	}
	kinds := map[decision.OutcomeKind]int{}
	for _, o := range byDecision {
		kinds[o.Kind]++
	}
	assert.Equal(t, 1, kinds[decision.OutcomeCompleted])
	assert.Equal(t, 1, kinds[decision.OutcomeInvalidated])
}

func TestPartyRemovedInvalidatesAndForgets(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.SetTarget("A", "town"))
	f.tick()
	require.NoError(t, f.w.RemoveParty("A"))
	require.NotNil(t, f.last())
	assert.Equal(t, decision.OutcomeInvalidated, f.last().Kind)
	assert.True(t, f.last().PartyDestroyed)
	assert.Equal(t, 1, f.r.Resolved())

	assert.Zero(t, f.r.Handle(world.Event{Kind: world.EventPartyRemoved, PartyID: "A"}))
}

func mustParty(t *testing.T, w *world.World, id string) *world.Party {
	t.Helper()
	p, ok := w.Party(id)
	require.True(t, ok)
	return p
}

package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignlab.ai/internal/sim/simtime"
)

func newTestWorld(t *testing.T) (*World, *[]Event) {
	t.Helper()
	w := NewEmpty(Config{Seed: 7})
	w.AddFaction("empire")
	w.AddFaction("sturgia")
	w.DeclareWar("empire", "sturgia")
	w.AddSettlement(Settlement{ID: "town_a", FactionID: "empire", Kind: SettlementTown, Pos: Vec2{X: 0, Y: 0}})
	w.AddSettlement(Settlement{ID: "village_b", FactionID: "sturgia", Kind: SettlementVillage, Pos: Vec2{X: 100, Y: 0}})
	var events []Event
	w.Subscribe(func(ev Event) { events = append(events, ev) })
	return w, &events
}

func TestArmyLifecycleEmitsEvents(t *testing.T) {
	w, events := newTestWorld(t)
	leader := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord})
	member := w.AddParty(PartySpec{ID: "lord_2", FactionID: "empire", Kind: PartyLord})

	require.NoError(t, w.JoinArmy(member.ID(), leader.ID()))
	id, ok := member.ArmyLeaderID()
	require.True(t, ok)
	assert.Equal(t, "lord_1", id)
	assert.True(t, leader.InArmy())
	assert.False(t, member.Attached())
	assert.Empty(t, *events, "a call into an army is not a join")

	require.NoError(t, w.AttachToArmy(member.ID()))
	assert.True(t, member.Attached())
	require.NoError(t, w.AttachToArmy(member.ID()))

	require.NoError(t, w.DisperseArmy(leader.ID()))
	assert.False(t, member.InArmy())
	assert.False(t, leader.InArmy())
	assert.False(t, member.Attached())

	require.Len(t, *events, 2)
	assert.Equal(t, EventArmyJoined, (*events)[0].Kind)
	assert.Equal(t, "lord_2", (*events)[0].PartyID)
	assert.Equal(t, "lord_1", (*events)[0].LeaderID)
	assert.Equal(t, EventArmyDispersed, (*events)[1].Kind)
	assert.Equal(t, "lord_1", (*events)[1].LeaderID)

	assert.Error(t, w.AttachToArmy(member.ID()))
}

func TestRallyAttachesOnArrival(t *testing.T) {
	w, events := newTestWorld(t)
	leader := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord, Pos: Vec2{X: 100}})
	member := w.AddParty(PartySpec{ID: "lord_2", FactionID: "empire", Kind: PartyLord, Stats: PartyStats{Speed: 60}})
	require.NoError(t, w.SetTarget(leader.ID(), "town_a"))
	require.NoError(t, w.JoinArmy(member.ID(), leader.ID()))
	assert.Equal(t, "town_a", member.TargetSettlementID())

	w.rally(member, leader, 1)
	assert.False(t, member.Attached(), "nothing attaches at the time of the call")
	assert.Zero(t, member.Position().X)

	w.clock.Advance(simtime.Hour)
	w.rally(member, leader, 1)
	assert.False(t, member.Attached())
	assert.InDelta(t, 60, member.Position().X, 1e-9)
	assert.Empty(t, *events)

	w.clock.Advance(simtime.Hour)
	w.rally(member, leader, 1)
	assert.True(t, member.Attached())
	assert.Equal(t, leader.Position(), member.Position())
	require.Len(t, *events, 1)
	assert.Equal(t, EventArmyJoined, (*events)[0].Kind)

	w.rally(leader, leader, 1)
	assert.True(t, leader.Attached())
	require.Len(t, *events, 2)
	assert.Equal(t, "lord_1", (*events)[1].PartyID)
}

func TestPendingArmyCallSurvivesExport(t *testing.T) {
	w, _ := newTestWorld(t)
	leader := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord, Pos: Vec2{X: 500}})
	member := w.AddParty(PartySpec{ID: "lord_2", FactionID: "empire", Kind: PartyLord})
	require.NoError(t, w.JoinArmy(member.ID(), leader.ID()))
	require.NoError(t, w.AttachToArmy(leader.ID()))

	st, err := w.Export()
	require.NoError(t, err)
	r, err := Restore(st)
	require.NoError(t, err)
	m, ok := r.Party(member.ID())
	require.True(t, ok)
	l, ok := r.Party(leader.ID())
	require.True(t, ok)
	assert.True(t, m.InArmy())
	assert.False(t, m.Attached())
	assert.True(t, l.Attached())
	assert.Equal(t, member.calledAt, m.calledAt)
}

func TestArmyLeaderUnresolvableAfterRemoval(t *testing.T) {
	w, _ := newTestWorld(t)
	leader := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord})
	member := w.AddParty(PartySpec{ID: "lord_2", FactionID: "empire", Kind: PartyLord})
	require.NoError(t, w.JoinArmy(member.ID(), leader.ID()))

	member.army = "ghost"
	_, ok := member.ArmyLeaderID()
	assert.False(t, ok)
	assert.True(t, member.InArmy())
}

func TestSettlementEntryClearsTarget(t *testing.T) {
	w, events := newTestWorld(t)
	p := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord})
	require.NoError(t, w.SetTarget(p.ID(), "town_a"))
	require.NoError(t, w.EnterSettlement(p.ID(), "town_a"))
	assert.Equal(t, "", p.TargetSettlementID())
	assert.Equal(t, "town_a", p.CurrentSettlementID())

	require.NoError(t, w.LeaveSettlement(p.ID()))
	assert.Equal(t, "", p.CurrentSettlementID())
	require.Len(t, *events, 2)
	assert.Equal(t, EventSettlementLeft, (*events)[1].Kind)
	assert.Equal(t, "town_a", (*events)[1].SettlementID)

	assert.ErrorIs(t, w.SetTarget(p.ID(), "nowhere"), ErrUnknownSettlement)
	assert.ErrorIs(t, w.SetTarget("nobody", "town_a"), ErrUnknownParty)
}

func TestTravelToHostileVillageStartsRaid(t *testing.T) {
	w, _ := newTestWorld(t)
	p := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord, Pos: Vec2{X: 95}, Stats: PartyStats{Speed: 10}})
	require.NoError(t, w.SetTarget(p.ID(), "village_b"))
	w.travel(p, 1)
	assert.Equal(t, "village_b", p.RaidingVillageID())
	assert.Equal(t, "", p.TargetSettlementID())
}

func TestRemovePartyDispersesArmy(t *testing.T) {
	w, events := newTestWorld(t)
	leader := w.AddParty(PartySpec{ID: "lord_1", FactionID: "empire", Kind: PartyLord})
	member := w.AddParty(PartySpec{ID: "lord_2", FactionID: "empire", Kind: PartyLord})
	require.NoError(t, w.JoinArmy(member.ID(), leader.ID()))

	require.NoError(t, w.RemoveParty(leader.ID()))
	_, ok := w.Party(leader.ID())
	assert.False(t, ok)
	assert.False(t, member.InArmy())
	last := (*events)[len(*events)-1]
	assert.Equal(t, EventPartyRemoved, last.Kind)
}

func TestTrackable(t *testing.T) {
	w, _ := newTestWorld(t)
	assert.True(t, Trackable(w.AddParty(PartySpec{Kind: PartyLord})))
	assert.True(t, Trackable(w.AddParty(PartySpec{Kind: PartyBandit})))
	assert.False(t, Trackable(w.AddParty(PartySpec{Kind: PartyCaravan})))
	assert.False(t, Trackable(w.AddParty(PartySpec{Kind: PartyMilitia})))
	assert.False(t, Trackable(nil))
}

func TestGeneratedWorldIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parties = 12
	a := New(cfg)
	b := New(cfg)
	for i := 0; i < 10; i++ {
		a.Advance(simtime.Day)
		b.Advance(simtime.Day)
	}
	sa, err := a.Export()
	require.NoError(t, err)
	sb, err := b.Export()
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestExportRestoreContinuesIdentically(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Parties = 10
	a := New(cfg)
	a.Advance(3 * simtime.Day)

	st, err := a.Export()
	require.NoError(t, err)
	b, err := Restore(st)
	require.NoError(t, err)

	a.Advance(simtime.Day)
	b.Advance(simtime.Day)
	sa, _ := a.Export()
	sb, _ := b.Export()
	assert.Equal(t, sa, sb)
}

package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignlab.ai/internal/decision"
	"campaignlab.ai/internal/sim/simtime"
	"campaignlab.ai/internal/sim/world"
)

func testWorld() (*world.World, *world.Party) {
	w := world.NewEmpty(world.Config{Seed: 1, GameVersion: "Native@test"})
	w.AddFaction("empire")
	w.AddFaction("sturgia")
	w.AddFaction("vlandia")
	w.DeclareWar("empire", "sturgia")
	w.AddSettlement(world.Settlement{ID: "village_x", FactionID: "sturgia", Kind: world.SettlementVillage, Pos: world.Vec2{X: 30, Y: 40}})
	p := w.AddParty(world.PartySpec{
		ID:        "lord_1",
		FactionID: "empire",
		Kind:      world.PartyLord,
		Stats: world.PartyStats{
			Troops: 80, Gold: 1200, Food: 12.7, Morale: 66.2, Speed: 4.5,
			Traits: world.Traits{Valor: 2, Calculating: -1, Honor: 1},
		},
	})
	w.Clock().Advance(simtime.Day*3 + 11*simtime.Hour)
	return w, p
}

func TestBuildEmitsFieldCountFeatures(t *testing.T) {
	w, p := testWorld()
	ctx := NewBuilder(w).Build(p, decision.KindMoveToObjective, "village_x")
	require.Equal(t, FieldCount, ctx.Len())

	names := map[string]bool{}
	for _, f := range ctx.Features() {
		assert.False(t, names[f.Name], "duplicate feature %s", f.Name)
		names[f.Name] = true
	}
}

func TestBuildTargetFeatures(t *testing.T) {
	w, p := testWorld()
	ctx := NewBuilder(w).Build(p, decision.KindRaidObjective, "village_x")

	num := func(name string) float64 {
		v, ok := ctx.Get(name)
		require.True(t, ok, name)
		n, ok := v.Number()
		require.True(t, ok, name)
		return n
	}
	assert.Equal(t, 50.0, num("targetDistanceStraightLine"))
	assert.Equal(t, float64(world.SettlementVillage), num("targetSettlementType"))
	assert.Equal(t, 0.0, num("targetIsFriendly"))
	assert.Equal(t, 1.0, num("isAtWar"))
	assert.Equal(t, 1.0, num("activeWarCount"))
	assert.Equal(t, 3.0, num("campaignDay"))
	assert.Equal(t, 1.0, num("timeOfDayBucket"))
	assert.Equal(t, float64(SchemaVersion), num("contextSchemaVersion"))
	assert.Equal(t, 2.0, num("aggression"))

	v, _ := ctx.Get("targetFactionId")
	s, ok := v.Str()
	require.True(t, ok)
	assert.Equal(t, "sturgia", s)

	v, _ = ctx.Get("gameVersionString")
	s, _ = v.Str()
	assert.Equal(t, "Native@test", s)
}

func TestBuildWithoutSettlementTarget(t *testing.T) {
	w, p := testWorld()
	ctx := NewBuilder(w).Build(p, decision.KindJoinGroup, "lord_9")
	v, _ := ctx.Get("targetFactionId")
	assert.True(t, v.IsNull())
	v, _ = ctx.Get("targetDistanceStraightLine")
	n, _ := v.Number()
	assert.Equal(t, -1.0, n)
}

func TestNullHashDeterministic(t *testing.T) {
	assert.Equal(t, nullHash("lord_1", 4), nullHash("lord_1", 4))
	assert.NotEqual(t, nullHash("lord_1", 4), nullHash("lord_1", 5))
	assert.GreaterOrEqual(t, nullHash("anything", 1<<20), int64(0))
}

func TestTimeOfDayBucket(t *testing.T) {
	assert.Equal(t, 2, timeOfDayBucket(5))
	assert.Equal(t, 0, timeOfDayBucket(6))
	assert.Equal(t, 1, timeOfDayBucket(10))
	assert.Equal(t, 2, timeOfDayBucket(18))
}

// Package features builds the context snapshot attached to every decision: a flat, versioned bag
// of party, temporal, target, strategic and personality features.
package features

import (
	"hash/fnv"
	"runtime/debug"
	"sync"

	"campaignlab.ai/internal/decision"
	"campaignlab.ai/internal/sim/world"
)

// SchemaVersion changes whenever a feature is added, removed or reordered. FieldCount must be kept
// equal to the number of features Build emits.
const (
	SchemaVersion = 5
	FieldCount    = 27
)

// Builder reads the world view at decision time. It never mutates the agent or the view.
type Builder struct {
	view    world.View
	version string
}

func NewBuilder(view world.View) *Builder {
	return &Builder{view: view, version: LabVersion()}
}

// Build returns the context for a decision of kind k by agent a toward targetID.
func (b *Builder) Build(a world.Agent, k decision.Kind, targetID string) decision.Context {
	now := b.view.Now()
	st := a.Stats()
	target, hasTarget := b.view.Settlement(targetID)

	targetDistance := -1.0
	targetType := int64(world.SettlementUnknown)
	targetFaction := ""
	targetFriendly := false
	if hasTarget {
		targetDistance = a.Position().Distance(target.Pos)
		targetType = int64(target.Kind)
		targetFaction = target.FactionID
		targetFriendly = target.FactionID == a.FactionID()
	}

	wars := activeWars(b.view, a.FactionID())
	ageDays := now.Sub(st.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	return decision.NewContextBuilder(FieldCount).
		// party structure
		Add("troopCount", decision.Int(int64(st.Troops))).
		Add("partyType", decision.String(a.Kind().String())).
		Add("isMainParty", decision.Bool(a.Kind() == world.PartyMain)).
		Add("partyAgeDays", decision.Float(round2(ageDays))).
		// temporal
		Add("campaignDay", decision.Int(int64(now.Day()))).
		Add("campaignSeason", decision.Int(int64(now.Season()))).
		Add("timeOfDayBucket", decision.Int(int64(timeOfDayBucket(now.HourOfDay())))).
		// kinematics
		Add("partySpeed", decision.Float(round2(st.Speed))).
		Add("targetDistanceStraightLine", decision.Float(round2(targetDistance))).
		// target
		Add("targetSettlementType", decision.Int(targetType)).
		Add("targetFactionId", decision.OptString(targetFaction)).
		Add("targetIsFriendly", decision.Bool(targetFriendly)).
		// negative controls
		Add("partyIdStringLength", decision.Int(int64(len(a.ID())))).
		Add("nullDeterministicHash", decision.Int(nullHash(a.ID(), now.Day()))).
		Add("contextFieldCount", decision.Int(FieldCount)).
		// strategic
		Add("isAtWar", decision.Bool(wars > 0)).
		Add("activeWarCount", decision.Int(int64(wars))).
		// resources
		Add("gold", decision.Int(int64(st.Gold))).
		Add("food", decision.Int(int64(st.Food))).
		Add("morale", decision.Int(int64(st.Morale))).
		// personality
		Add("aggression", decision.Int(int64(st.Traits.Valor))).
		Add("caution", decision.Int(int64(st.Traits.Calculating))).
		Add("honor", decision.Int(int64(st.Traits.Honor))).
		Add("generosity", decision.Int(int64(st.Traits.Generosity))).
		// metadata
		Add("contextSchemaVersion", decision.Int(SchemaVersion)).
		Add("campaignLabVersion", decision.String(b.version)).
		Add("gameVersionString", decision.String(b.view.GameVersion())).
		Build()
}

func activeWars(v world.View, faction string) int {
	if faction == "" {
		return 0
	}
	n := 0
	for _, other := range v.Factions() {
		if other != faction && v.AtWar(faction, other) {
			n++
		}
	}
	return n
}

// timeOfDayBucket: 0 morning [6,10), 1 day [10,18), 2 night.
func timeOfDayBucket(hour int) int {
	switch {
	case hour >= 6 && hour < 10:
		return 0
	case hour >= 10 && hour < 18:
		return 1
	default:
		return 2
	}
}

// nullHash is a feature with no behavioural signal, stable across runs and platforms.
func nullHash(partyID string, day int) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(partyID))
	return int64((h.Sum32() ^ uint32(day)) & 0x7fffffff)
}

func round2(v float64) float64 {
	if v < 0 {
		return -float64(int64(-v*100+0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

var (
	versionOnce sync.Once
	version     string
)

// LabVersion reports the module version baked into the binary, or "Unknown".
func LabVersion() string {
	versionOnce.Do(func() {
		version = "Unknown"
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
	})
	return version
}

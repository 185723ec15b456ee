// Package world is the host-simulation side of the lab: the read-only agent handle the decision
// engine observes, and a small deterministic campaign map that produces it.
package world

import (
	"math"

	"campaignlab.ai/internal/sim/simtime"
)

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) DistanceSquared(o Vec2) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return dx*dx + dy*dy
}

func (v Vec2) Distance(o Vec2) float64 { return math.Sqrt(v.DistanceSquared(o)) }

type PartyKind int

const (
	PartyOther PartyKind = iota
	PartyLord
	PartyMain
	PartyBandit
	PartyMilitia
	PartyCaravan
)

func (k PartyKind) String() string {
	switch k {
	case PartyLord:
		return "LordParty"
	case PartyMain:
		return "MainParty"
	case PartyBandit:
		return "BanditParty"
	case PartyMilitia:
		return "MilitiaParty"
	case PartyCaravan:
		return "CaravanParty"
	default:
		return "Other"
	}
}

// SettlementKind values are stable; they are written into decision contexts.
type SettlementKind int

const (
	SettlementUnknown SettlementKind = 0
	SettlementTown    SettlementKind = 1
	SettlementCastle  SettlementKind = 2
	SettlementVillage SettlementKind = 3
	SettlementHideout SettlementKind = 4
)

func (k SettlementKind) String() string {
	switch k {
	case SettlementTown:
		return "Town"
	case SettlementCastle:
		return "Castle"
	case SettlementVillage:
		return "Village"
	case SettlementHideout:
		return "Hideout"
	default:
		return "Unknown"
	}
}

type Settlement struct {
	ID        string
	FactionID string
	Kind      SettlementKind
	Pos       Vec2
}

type Traits struct {
	Valor       int
	Calculating int
	Honor       int
	Generosity  int
}

type PartyStats struct {
	Troops    int
	Food      float64
	Morale    float64
	Gold      int
	Speed     float64
	Traits    Traits
	HasLeader bool
	CreatedAt simtime.Time
}

// Agent is the read-only handle of one party as the host exposes it. Implementations must not be
// mutated through this interface.
type Agent interface {
	ID() string
	FactionID() string
	Active() bool
	Kind() PartyKind

	InArmy() bool
	// ArmyLeaderID returns the leader of the party's army when it can be resolved.
	ArmyLeaderID() (string, bool)
	TargetSettlementID() string
	CurrentSettlementID() string
	Position() Vec2

	Stats() PartyStats
}

// View is the read-only slice of the world used for observation and context building.
type View interface {
	Now() simtime.Time
	// Settlements returns every settlement ordered by ID.
	Settlements() []Settlement
	Settlement(id string) (Settlement, bool)
	Factions() []string
	AtWar(a, b string) bool
	GameVersion() string
}

// Trackable reports whether decisions of a are worth inferring. Militia and caravans follow
// scripted routines and inactive parties have nothing to observe.
func Trackable(a Agent) bool {
	if a == nil || !a.Active() {
		return false
	}
	switch a.Kind() {
	case PartyMilitia, PartyCaravan:
		return false
	}
	return true
}

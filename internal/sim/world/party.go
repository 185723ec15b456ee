package world

import "campaignlab.ai/internal/sim/simtime"

// Party is the reference world's mobile party. It satisfies Agent; all mutation goes through World.
type Party struct {
	w *World

	id       string
	faction  string
	kind     PartyKind
	active   bool
	pos      Vec2
	target   string
	current  string
	army     string // leader id; a leader's army is its own id
	attached bool   // false between the call into an army and reaching the leader
	calledAt simtime.Time
	raiding  string
	stats    PartyStats
}

func (p *Party) ID() string                  { return p.id }
func (p *Party) FactionID() string           { return p.faction }
func (p *Party) Active() bool                { return p.active }
func (p *Party) Kind() PartyKind             { return p.kind }
func (p *Party) InArmy() bool                { return p.army != "" }
func (p *Party) TargetSettlementID() string  { return p.target }
func (p *Party) CurrentSettlementID() string { return p.current }
func (p *Party) Position() Vec2              { return p.pos }
func (p *Party) Stats() PartyStats           { return p.stats }

// Attached reports whether the party has reached the army it was called into.
func (p *Party) Attached() bool { return p.army != "" && p.attached }

// RaidingVillageID is the village the party is currently besieging for loot, if any.
func (p *Party) RaidingVillageID() string { return p.raiding }

func (p *Party) ArmyLeaderID() (string, bool) {
	if p.army == "" {
		return "", false
	}
	if p.w != nil {
		leader := p.w.parties[p.army]
		if leader == nil || !leader.active {
			return "", false
		}
	}
	return p.army, true
}

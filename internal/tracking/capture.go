package tracking

import "campaignlab.ai/internal/sim/world"

// Fingerprint is the per-tick snapshot of an agent's visible commitments. Two captures of the
// same agent within one tick compare equal.
type Fingerprint struct {
	InArmy bool
	// LeaderID is set only when the army leader resolves.
	LeaderID string
	TargetID string

	NearHostile bool
	HostileID   string

	Inside   bool
	InsideID string
}

// Capture samples a's commitments against v. Hostile proximity is the first village, in the view's
// stable settlement order, that belongs to a faction at war with a and lies strictly within radius.
//
// The scan is linear in the number of settlements. It is meant for the daily sampling cadence.
func Capture(a world.Agent, v world.View, radius float64) Fingerprint {
	var fp Fingerprint
	if a == nil {
		return fp
	}
	fp.InArmy = a.InArmy()
	if fp.InArmy {
		if leader, ok := a.ArmyLeaderID(); ok {
			fp.LeaderID = leader
		}
	}
	fp.TargetID = a.TargetSettlementID()
	if cur := a.CurrentSettlementID(); cur != "" {
		fp.Inside = true
		fp.InsideID = cur
	}
	if v == nil || radius <= 0 {
		return fp
	}

	pos := a.Position()
	r2 := radius * radius
	for _, s := range v.Settlements() {
		if s.Kind != world.SettlementVillage || s.FactionID == a.FactionID() {
			continue
		}
		if !v.AtWar(a.FactionID(), s.FactionID) {
			continue
		}
		if pos.DistanceSquared(s.Pos) < r2 {
			fp.NearHostile = true
			fp.HostileID = s.ID
			break
		}
	}
	return fp
}

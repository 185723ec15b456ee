// Package resolution turns world lifecycle events into terminal calls on the decision registry.
package resolution

import (
	"go.uber.org/zap"

	"campaignlab.ai/internal/decision"
	"campaignlab.ai/internal/sim/world"
	"campaignlab.ai/internal/tracking"
)

// Registry is the inbound surface of the tracking engine used by the resolver.
type Registry interface {
	GetActive(agentID string) (*decision.Decision, bool)
	Targeting(k decision.Kind, targetID string) []string
	MarkCompleted(agentID, cause string, opts ...tracking.OutcomeOption) bool
	MarkAborted(agentID, cause string, opts ...tracking.OutcomeOption) bool
	MarkInvalidated(agentID, cause string, opts ...tracking.OutcomeOption) bool
	Forget(agentID string)
}

type Resolver struct {
	reg Registry
	log *zap.Logger

	resolved int
}

func New(reg Registry, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{reg: reg, log: log}
}

// Listener adapts the resolver for world.Subscribe.
func (r *Resolver) Listener() world.Listener { return func(ev world.Event) { r.Handle(ev) } }

// Resolved counts the decisions terminated through this resolver.
func (r *Resolver) Resolved() int { return r.resolved }

// Handle applies ev and returns how many decisions it terminated. Events with no matching active
// decision, including duplicates, do nothing.
func (r *Resolver) Handle(ev world.Event) int {
	n := 0
	switch ev.Kind {
	case world.EventArmyJoined:
		if r.activeIs(ev.PartyID, decision.KindJoinGroup, ev.LeaderID) {
			n += r.count(r.reg.MarkCompleted(ev.PartyID, "joined army"))
		}
	case world.EventArmyLeft:
		if r.activeIs(ev.PartyID, decision.KindJoinGroup, "") {
			n += r.count(r.reg.MarkAborted(ev.PartyID, "left army"))
		}
	case world.EventArmyDispersed:
		for _, id := range r.reg.Targeting(decision.KindJoinGroup, ev.LeaderID) {
			n += r.count(r.reg.MarkAborted(id, "army dispersed"))
		}
	case world.EventVillageLooted:
		for _, id := range r.reg.Targeting(decision.KindRaidObjective, ev.SettlementID) {
			n += r.count(r.reg.MarkCompleted(id, "village looted", tracking.WithTargetCaptured()))
		}
	case world.EventRaidEnded:
		if !ev.Looted && r.activeIs(ev.PartyID, decision.KindRaidObjective, ev.SettlementID) {
			n += r.count(r.reg.MarkAborted(ev.PartyID, "raid failed"))
		}
	case world.EventSettlementEntered:
		if r.activeIs(ev.PartyID, decision.KindMoveToObjective, ev.SettlementID) {
			n += r.count(r.reg.MarkCompleted(ev.PartyID, "arrived"))
		}
	case world.EventSettlementLeft:
		if r.activeIs(ev.PartyID, decision.KindEnterObjective, ev.SettlementID) {
			n += r.count(r.reg.MarkCompleted(ev.PartyID, "left settlement"))
		}
	case world.EventSettlementCaptured:
		for _, id := range r.reg.Targeting(decision.KindNone, ev.SettlementID) {
			d, ok := r.reg.GetActive(id)
			if !ok {
				continue
			}
			if d.FactionID != "" && d.FactionID == ev.FactionID {
				n += r.count(r.reg.MarkCompleted(id, "target captured", tracking.WithTargetCaptured()))
			} else {
				n += r.count(r.reg.MarkInvalidated(id, "target captured by "+ev.FactionID))
			}
		}
	case world.EventPartyRemoved:
		n += r.count(r.reg.MarkInvalidated(ev.PartyID, "party destroyed", tracking.WithPartyDestroyed()))
		r.reg.Forget(ev.PartyID)
	}
	if n > 0 {
		r.log.Debug("world event resolved decisions",
			zap.String("event", ev.Kind.String()),
			zap.String("party", ev.PartyID),
			zap.Int("resolved", n))
	}
	return n
}

// activeIs reports whether agentID's active decision has kind k and, when target is set, that target.
func (r *Resolver) activeIs(agentID string, k decision.Kind, target string) bool {
	d, ok := r.reg.GetActive(agentID)
	if !ok || d.Kind != k {
		return false
	}
	return target == "" || d.TargetID == target
}

func (r *Resolver) count(ok bool) int {
	if !ok {
		return 0
	}
	r.resolved++
	return 1
}

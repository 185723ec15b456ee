package tracking

import (
	"fmt"

	"go.uber.org/zap"

	"campaignlab.ai/internal/decision"
)

const (
	noteForcedResolve = "ForcedResolveWithoutTerminalState"
	noteIllegal       = "IllegalTransition"
)

// OutcomeOption fills the payload of a terminal outcome.
type OutcomeOption func(*decision.Outcome)

func WithTargetCaptured() OutcomeOption {
	return func(o *decision.Outcome) { o.TargetCaptured = true }
}

func WithPartyDestroyed() OutcomeOption {
	return func(o *decision.Outcome) { o.PartyDestroyed = true }
}

func WithDeltas(troopsLost, goldChange, moraleChange int) OutcomeOption {
	return func(o *decision.Outcome) {
		o.TroopsLost = troopsLost
		o.GoldChange = goldChange
		o.MoraleChange = moraleChange
	}
}

// MarkCompleted resolves the active decision of agentID as Completed. It reports false when there
// is nothing to resolve.
func (e *Engine) MarkCompleted(agentID, cause string, opts ...OutcomeOption) bool {
	return e.mark(agentID, decision.StatusCompleted, cause, opts)
}

func (e *Engine) MarkAborted(agentID, cause string, opts ...OutcomeOption) bool {
	return e.mark(agentID, decision.StatusAborted, cause, opts)
}

func (e *Engine) MarkInvalidated(agentID, cause string, opts ...OutcomeOption) bool {
	return e.mark(agentID, decision.StatusInvalidated, cause, opts)
}

func (e *Engine) mark(agentID string, next decision.Status, cause string, opts []OutcomeOption) bool {
	en, ok := e.active[agentID]
	if !ok {
		return false
	}
	return e.transition(en, next, cause, opts) == nil
}

// Resolve force-terminates the active decision of agentID when the caller does not know which
// terminal status applies. A decision still active at this point is recorded as an Error outcome.
func (e *Engine) Resolve(agentID string) bool {
	en, ok := e.active[agentID]
	if !ok {
		return false
	}
	if en.Status.Terminal() {
		e.evict(en)
		return true
	}
	e.log.Warn("forced resolve of active decision",
		zap.String("party", agentID),
		zap.String("decision", en.Decision.ID),
		zap.String("status", en.Status.String()))
	en.Status = decision.StatusInvalidated
	e.evict(en)
	e.emit(en.Decision, decision.OutcomeError, e.now(), func(o *decision.Outcome) {
		o.Notes = decision.Some(noteForcedResolve)
	})
	return true
}

// Transition moves en to next. Promotion from Registered to Executing is the only non-terminal
// move. Moving to a terminal status emits its outcome and evicts the entry. Any move out of a
// terminal status is rejected with an Error outcome.
func (e *Engine) Transition(en *Entry, next decision.Status) error {
	return e.transition(en, next, "", nil)
}

func (e *Engine) transition(en *Entry, next decision.Status, cause string, opts []OutcomeOption) error {
	if en == nil || en.Decision == nil {
		return nil
	}
	from := en.Status
	now := e.now()

	if from.Terminal() {
		e.evict(en)
		note := fmt.Sprintf("%s:%s->%s", noteIllegal, from, next)
		e.log.Warn("transition out of terminal status",
			zap.String("party", en.AgentID),
			zap.String("decision", en.Decision.ID),
			zap.String("from", from.String()),
			zap.String("to", next.String()))
		e.emit(en.Decision, decision.OutcomeError, now, func(o *decision.Outcome) {
			o.Notes = decision.Some(note)
		})
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
	}

	switch {
	case next == from:
		return nil
	case next == decision.StatusExecuting && from == decision.StatusRegistered:
		en.Status = next
		return nil
	case !next.Terminal():
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
	}

	kind, _ := decision.OutcomeFor(next)
	en.Status = next
	e.evict(en)
	e.emit(en.Decision, kind, now, func(o *decision.Outcome) {
		for _, opt := range opts {
			opt(o)
		}
		if cause != "" {
			o.Notes = decision.Some(cause)
		}
	})
	e.log.Debug("decision resolved",
		zap.String("party", en.AgentID),
		zap.String("decision", en.Decision.ID),
		zap.String("outcome", kind.String()))
	return nil
}

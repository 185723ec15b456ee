// Package tracking infers decisions from agent commitments and owns their lifecycle. An Engine is
// driven from a single goroutine; none of its methods are safe for concurrent use.
package tracking

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campaignlab.ai/internal/decision"
	"campaignlab.ai/internal/sim/simtime"
	"campaignlab.ai/internal/sim/world"
)

var ErrIllegalTransition = errors.New("illegal decision transition")

// Sink receives every decision and outcome the engine produces. Enqueue must not block.
type Sink interface {
	EnqueueDecision(*decision.Decision)
	EnqueueOutcome(*decision.Outcome)
}

// ContextBuilder supplies the immutable feature snapshot stored with a new decision.
type ContextBuilder interface {
	Build(a world.Agent, k decision.Kind, targetID string) decision.Context
}

type Config struct {
	// SampleInterval is the tick period; a decision is promoted to Executing once it is this old.
	SampleInterval simtime.Duration
	// HostileRadius bounds the hostile village proximity check, in map units.
	HostileRadius float64
}

func DefaultConfig() Config {
	return Config{SampleInterval: simtime.Day, HostileRadius: 20}
}

// Entry is the registry slot of one agent.
type Entry struct {
	AgentID  string
	Decision *decision.Decision
	Status   decision.Status
}

type Engine struct {
	view   world.View
	clock  simtime.Clock
	ctx    ContextBuilder
	sink   Sink
	cfg    Config
	log    *zap.Logger
	newID  func() string
	active map[string]*Entry
	last   map[string]Fingerprint
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the view as the source of timestamps.
func WithClock(c simtime.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDSource replaces the random decision id generator.
func WithIDSource(f func() string) Option {
	return func(e *Engine) {
		if f != nil {
			e.newID = f
		}
	}
}

func New(view world.View, ctx ContextBuilder, sink Sink, cfg Config, opts ...Option) *Engine {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultConfig().SampleInterval
	}
	if cfg.HostileRadius <= 0 {
		cfg.HostileRadius = DefaultConfig().HostileRadius
	}
	e := &Engine{
		view:   view,
		clock:  view,
		ctx:    ctx,
		sink:   sink,
		cfg:    cfg,
		log:    zap.NewNop(),
		newID:  uuid.NewString,
		active: map[string]*Entry{},
		last:   map[string]Fingerprint{},
	}
	if e.sink == nil {
		e.sink = nopSink{}
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) now() simtime.Time {
	if e.clock == nil {
		return 0
	}
	return e.clock.Now()
}

// Capture samples a against the engine's view and radius.
func (e *Engine) Capture(a world.Agent) Fingerprint {
	return Capture(a, e.view, e.cfg.HostileRadius)
}

// Observe runs one sampling tick for a. It promotes a due decision, captures a fresh fingerprint,
// and registers at most one new decision, superseding any active one. The first observation of an
// agent only records its fingerprint. Untrackable agents are ignored.
func (e *Engine) Observe(a world.Agent) *decision.Decision {
	if !world.Trackable(a) {
		return nil
	}
	id := a.ID()
	now := e.now()
	e.promote(id, now)

	cur := e.Capture(a)
	prev, seen := e.last[id]
	e.last[id] = cur
	if !seen {
		return nil
	}

	kind, target := Infer(prev, cur)
	if kind == decision.KindNone {
		return nil
	}

	d := &decision.Decision{
		ID:        e.newID(),
		Timestamp: now,
		PartyID:   id,
		FactionID: a.FactionID(),
		Kind:      kind,
		TargetID:  target,
	}
	if e.ctx != nil {
		d.Context = e.ctx.Build(a, kind, target)
	}

	if old, ok := e.active[id]; ok {
		e.supersede(old, kind, now)
	}
	e.active[id] = &Entry{AgentID: id, Decision: d, Status: decision.StatusRegistered}
	e.sink.EnqueueDecision(d)
	e.log.Debug("decision registered",
		zap.String("party", id),
		zap.String("kind", kind.String()),
		zap.String("target", target),
		zap.String("decision", d.ID))
	return d
}

// OnTick observes every agent. Callers pass agents in a stable order.
func (e *Engine) OnTick(agents []world.Agent) []*decision.Decision {
	var out []*decision.Decision
	for _, a := range agents {
		if d := e.Observe(a); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (e *Engine) promote(id string, now simtime.Time) {
	en, ok := e.active[id]
	if !ok || en.Status != decision.StatusRegistered {
		return
	}
	if now.Sub(en.Decision.Timestamp) < e.cfg.SampleInterval {
		return
	}
	if err := e.Transition(en, decision.StatusExecuting); err == nil {
		e.log.Debug("decision executing", zap.String("party", id), zap.String("decision", en.Decision.ID))
	}
}

func (e *Engine) supersede(old *Entry, by decision.Kind, now simtime.Time) {
	old.Status = decision.StatusOverridden
	e.evict(old)
	e.emit(old.Decision, decision.OutcomeOverridden, now, func(o *decision.Outcome) {
		o.OverriddenBy = decision.Some(by)
	})
	e.log.Debug("decision overridden",
		zap.String("party", old.AgentID),
		zap.String("decision", old.Decision.ID),
		zap.String("by", by.String()))
}

func (e *Engine) evict(en *Entry) {
	if cur, ok := e.active[en.AgentID]; ok && cur == en {
		delete(e.active, en.AgentID)
	}
}

func (e *Engine) emit(d *decision.Decision, kind decision.OutcomeKind, now simtime.Time, mut func(*decision.Outcome)) {
	dur := now.Sub(d.Timestamp)
	if dur < 0 {
		dur = 0
	}
	o := &decision.Outcome{
		DecisionID: d.ID,
		Kind:       kind,
		ResolvedAt: now,
		Duration:   dur,
	}
	if mut != nil {
		mut(o)
	}
	e.sink.EnqueueOutcome(o)
}

// Forget drops the remembered fingerprint of an agent that left the world.
func (e *Engine) Forget(agentID string) { delete(e.last, agentID) }

// GetActive returns the active decision of agentID.
func (e *Engine) GetActive(agentID string) (*decision.Decision, bool) {
	en, ok := e.active[agentID]
	if !ok {
		return nil, false
	}
	return en.Decision, true
}

// Entry returns the registry slot of agentID.
func (e *Engine) Entry(agentID string) (*Entry, bool) {
	en, ok := e.active[agentID]
	return en, ok
}

func (e *Engine) Status(agentID string) (decision.Status, bool) {
	en, ok := e.active[agentID]
	if !ok {
		return 0, false
	}
	return en.Status, true
}

// ActiveIDs returns a sorted snapshot of agents with an active decision. It may be iterated while
// the registry is mutated.
func (e *Engine) ActiveIDs() []string {
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) ActiveCount() int { return len(e.active) }

// Targeting lists, sorted, the agents whose active decision is of kind k toward targetID.
// KindNone matches every kind.
func (e *Engine) Targeting(k decision.Kind, targetID string) []string {
	var ids []string
	for id, en := range e.active {
		if en.Decision.TargetID != targetID {
			continue
		}
		if k != decision.KindNone && en.Decision.Kind != k {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type nopSink struct{}

func (nopSink) EnqueueDecision(*decision.Decision) {}
func (nopSink) EnqueueOutcome(*decision.Outcome)   {}

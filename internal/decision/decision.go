package decision

import "campaignlab.ai/internal/sim/simtime"

// Decision is an inferred commitment change. It is never mutated after creation.
type Decision struct {
	ID        string
	Timestamp simtime.Time
	PartyID   string
	// FactionID and TargetID are empty when absent; they are written as null.
	FactionID string
	Kind      Kind
	TargetID  string
	Context   Context
}

// Opt is an explicitly optional field.
type Opt[T any] struct {
	v  T
	ok bool
}

func Some[T any](v T) Opt[T] { return Opt[T]{v: v, ok: true} }

func (o Opt[T]) Get() (T, bool) { return o.v, o.ok }

func (o Opt[T]) Present() bool { return o.ok }

// Outcome is the terminal resolution of one decision. Exactly one is produced per terminal
// transition.
type Outcome struct {
	DecisionID string
	Kind       OutcomeKind
	ResolvedAt simtime.Time
	Duration   simtime.Duration

	TroopsLost     int
	GoldChange     int
	MoraleChange   int
	TargetCaptured bool
	PartyDestroyed bool

	OverriddenBy Opt[Kind]
	Notes        Opt[string]
}

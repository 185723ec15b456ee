// Package decision holds the immutable facts the lab records: inferred decisions, their
// outcomes, and the lifecycle status of a tracked decision.
package decision

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of decision kinds the engine can infer.
type Kind uint8

const (
	KindNone Kind = iota
	KindJoinGroup
	KindMoveToObjective
	KindRaidObjective
	KindEnterObjective
)

var kindNames = [...]string{
	KindNone:            "",
	KindJoinGroup:       "JoinArmy",
	KindMoveToObjective: "MoveToSettlement",
	KindRaidObjective:   "RaidVillage",
	KindEnterObjective:  "EnterSettlement",
}

// String returns the wire name written to the logs.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) Valid() bool { return k > KindNone && int(k) < len(kindNames) }

func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n != "" && n == s {
			return Kind(i), nil
		}
	}
	return KindNone, fmt.Errorf("unknown decision kind %q", s)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal decision kind %d", uint8(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Status is the lifecycle position of a tracked decision.
type Status uint8

const (
	StatusRegistered Status = iota
	StatusExecuting
	StatusCompleted
	StatusAborted
	StatusOverridden
	StatusInvalidated
)

func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "Registered"
	case StatusExecuting:
		return "Executing"
	case StatusCompleted:
		return "Completed"
	case StatusAborted:
		return "Aborted"
	case StatusOverridden:
		return "Overridden"
	case StatusInvalidated:
		return "Invalidated"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Terminal statuses form an absorbing set.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAborted, StatusOverridden, StatusInvalidated:
		return true
	}
	return false
}

// Active is the complement of Terminal for known statuses.
func (s Status) Active() bool { return s == StatusRegistered || s == StatusExecuting }

// OutcomeKind mirrors the terminal statuses plus Error for invariant violations.
type OutcomeKind uint8

const (
	OutcomeCompleted OutcomeKind = iota + 1
	OutcomeAborted
	OutcomeOverridden
	OutcomeInvalidated
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "Completed"
	case OutcomeAborted:
		return "Aborted"
	case OutcomeOverridden:
		return "Overridden"
	case OutcomeInvalidated:
		return "Invalidated"
	case OutcomeError:
		return "Error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
	}
}

func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for k := OutcomeCompleted; k <= OutcomeError; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome kind %q", s)
}

// OutcomeFor maps a terminal status to the outcome it produces.
func OutcomeFor(s Status) (OutcomeKind, bool) {
	switch s {
	case StatusCompleted:
		return OutcomeCompleted, true
	case StatusAborted:
		return OutcomeAborted, true
	case StatusOverridden:
		return OutcomeOverridden, true
	case StatusInvalidated:
		return OutcomeInvalidated, true
	}
	return 0, false
}

func (k OutcomeKind) MarshalJSON() ([]byte, error) {
	if k < OutcomeCompleted || k > OutcomeError {
		return nil, fmt.Errorf("marshal outcome kind %d", uint8(k))
	}
	return json.Marshal(k.String())
}

func (k *OutcomeKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseOutcomeKind(s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

package log

import (
	"math"

	"campaignlab.ai/internal/decision"
)

// DecisionRecord is one line of decisions.jsonl. Field order is the wire order; new fields are
// only ever appended.
type DecisionRecord struct {
	DecisionID   string           `json:"decisionId"`
	Timestamp    string           `json:"timestamp"`
	PartyID      string           `json:"partyId"`
	FactionID    *string          `json:"factionId"`
	DecisionType string           `json:"decisionType"`
	TargetID     *string          `json:"targetId"`
	Context      decision.Context `json:"context"`
}

// OutcomeRecord is one line of outcomes.jsonl. Optional fields are omitted when absent.
type OutcomeRecord struct {
	DecisionID     string  `json:"decisionId"`
	OutcomeType    string  `json:"outcomeType"`
	ResolutionTime string  `json:"resolutionTime"`
	DurationHours  float64 `json:"durationHours"`
	TroopsLost     int     `json:"troopsLost"`
	GoldChange     int     `json:"goldChange"`
	MoraleChange   int     `json:"moraleChange"`
	TargetCaptured bool    `json:"targetCaptured"`
	PartyDestroyed bool    `json:"partyDestroyed"`

	OverriddenByDecisionType *string `json:"overriddenByDecisionType,omitempty"`
	Notes                    *string `json:"notes,omitempty"`
}

func DecisionRecordOf(d *decision.Decision) DecisionRecord {
	return DecisionRecord{
		DecisionID:   d.ID,
		Timestamp:    d.Timestamp.String(),
		PartyID:      d.PartyID,
		FactionID:    optional(d.FactionID),
		DecisionType: d.Kind.String(),
		TargetID:     optional(d.TargetID),
		Context:      d.Context,
	}
}

func OutcomeRecordOf(o *decision.Outcome) OutcomeRecord {
	r := OutcomeRecord{
		DecisionID:     o.DecisionID,
		OutcomeType:    o.Kind.String(),
		ResolutionTime: o.ResolvedAt.String(),
		DurationHours:  math.Round(o.Duration.Hours()*100) / 100,
		TroopsLost:     o.TroopsLost,
		GoldChange:     o.GoldChange,
		MoraleChange:   o.MoraleChange,
		TargetCaptured: o.TargetCaptured,
		PartyDestroyed: o.PartyDestroyed,
	}
	if k, ok := o.OverriddenBy.Get(); ok {
		s := k.String()
		r.OverriddenByDecisionType = &s
	}
	if n, ok := o.Notes.Get(); ok {
		r.Notes = &n
	}
	return r
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package tracking

import (
	"fmt"

	"campaignlab.ai/internal/decision"
)

// State is the resumable content of an Engine.
type State struct {
	Entries      []EntryState
	Fingerprints map[string]Fingerprint
}

type EntryState struct {
	AgentID  string
	Decision decision.Decision
	Status   decision.Status
}

func (e *Engine) Export() State {
	st := State{Fingerprints: make(map[string]Fingerprint, len(e.last))}
	for id, fp := range e.last {
		st.Fingerprints[id] = fp
	}
	for _, id := range e.ActiveIDs() {
		en := e.active[id]
		st.Entries = append(st.Entries, EntryState{AgentID: id, Decision: *en.Decision, Status: en.Status})
	}
	return st
}

// Import replaces the registry and fingerprint history with st. No records are emitted.
func (e *Engine) Import(st State) error {
	active := make(map[string]*Entry, len(st.Entries))
	for _, es := range st.Entries {
		if es.AgentID == "" {
			return fmt.Errorf("import: entry without agent id")
		}
		if !es.Status.Active() {
			return fmt.Errorf("import: entry %s has status %s", es.AgentID, es.Status)
		}
		if _, dup := active[es.AgentID]; dup {
			return fmt.Errorf("import: duplicate entry for %s", es.AgentID)
		}
		d := es.Decision
		active[es.AgentID] = &Entry{AgentID: es.AgentID, Decision: &d, Status: es.Status}
	}
	last := make(map[string]Fingerprint, len(st.Fingerprints))
	for id, fp := range st.Fingerprints {
		last[id] = fp
	}
	e.active = active
	e.last = last
	return nil
}

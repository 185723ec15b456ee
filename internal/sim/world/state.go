package world

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"campaignlab.ai/internal/sim/simtime"
)

// State is the serializable form of a World, used for resumable runs.
type State struct {
	Config      Config
	Now         simtime.Time
	RNG         []byte
	Factions    []string
	Wars        []string
	Settlements []Settlement
	Parties     []PartyState
	NextParty   int
}

type PartyState struct {
	ID        string
	FactionID string
	Kind      PartyKind
	Pos       Vec2
	Target    string
	Current   string
	Army      string
	Attached  bool
	CalledAt  simtime.Time
	Raiding   string
	Stats     PartyStats
}

func (w *World) Export() (State, error) {
	rng, err := w.src.MarshalBinary()
	if err != nil {
		return State{}, fmt.Errorf("marshal rng: %w", err)
	}
	st := State{
		Config:      w.cfg,
		Now:         w.clock.Now(),
		RNG:         rng,
		Factions:    w.Factions(),
		Settlements: w.Settlements(),
		NextParty:   w.nextParty,
	}
	for k := range w.wars {
		st.Wars = append(st.Wars, k)
	}
	sort.Strings(st.Wars)
	for _, p := range w.Parties() {
		st.Parties = append(st.Parties, PartyState{
			ID:        p.id,
			FactionID: p.faction,
			Kind:      p.kind,
			Pos:       p.pos,
			Target:    p.target,
			Current:   p.current,
			Army:      p.army,
			Attached:  p.attached,
			CalledAt:  p.calledAt,
			Raiding:   p.raiding,
			Stats:     p.stats,
		})
	}
	return st, nil
}

// Restore rebuilds a world from an exported State. Listeners are not part of the state.
func Restore(st State) (*World, error) {
	w := NewEmpty(st.Config)
	if len(st.RNG) > 0 {
		if err := w.src.UnmarshalBinary(st.RNG); err != nil {
			return nil, fmt.Errorf("unmarshal rng: %w", err)
		}
		w.rng = rand.New(w.src)
	}
	w.clock = simtime.NewManualClock(st.Now)
	w.factions = append([]string(nil), st.Factions...)
	sort.Strings(w.factions)
	for _, k := range st.Wars {
		w.wars[k] = true
	}
	w.settlements = append([]Settlement(nil), st.Settlements...)
	sort.Slice(w.settlements, func(i, j int) bool { return w.settlements[i].ID < w.settlements[j].ID })
	w.reindex()
	for _, ps := range st.Parties {
		w.parties[ps.ID] = &Party{
			w:        w,
			id:       ps.ID,
			faction:  ps.FactionID,
			kind:     ps.Kind,
			active:   true,
			pos:      ps.Pos,
			target:   ps.Target,
			current:  ps.Current,
			army:     ps.Army,
			attached: ps.Attached,
			calledAt: ps.CalledAt,
			raiding:  ps.Raiding,
			stats:    ps.Stats,
		}
	}
	w.nextParty = st.NextParty
	return w, nil
}

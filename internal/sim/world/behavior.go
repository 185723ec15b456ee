package world

import (
	"fmt"
	"math"

	"campaignlab.ai/internal/sim/simtime"
)

func (w *World) generate() {
	cfg := w.cfg
	size := cfg.MapSize
	if size <= 0 {
		size = DefaultConfig().MapSize
	}
	for i := 1; i <= cfg.Factions; i++ {
		w.AddFaction(fmt.Sprintf("faction_%d", i))
	}
	for i := 0; i < len(w.factions); i++ {
		for j := i + 1; j < len(w.factions); j++ {
			if (i == 0 && j == 1) || w.rng.Float64() < 0.4 {
				w.DeclareWar(w.factions[i], w.factions[j])
			}
		}
	}

	kinds := []SettlementKind{SettlementVillage, SettlementVillage, SettlementTown, SettlementVillage, SettlementCastle}
	for fi, f := range w.factions {
		// Faction heartlands sit on a ring so neighbours border each other.
		angle := 2 * math.Pi * float64(fi) / float64(len(w.factions))
		center := Vec2{X: size/2 + size/3*math.Cos(angle), Y: size/2 + size/3*math.Sin(angle)}
		for si := 0; si < cfg.SettlementsPerFaction; si++ {
			kind := kinds[si%len(kinds)]
			w.AddSettlement(Settlement{
				ID:        fmt.Sprintf("%s_%s_%02d", kind.String(), f, si+1),
				FactionID: f,
				Kind:      kind,
				Pos: Vec2{
					X: center.X + (w.rng.Float64()-0.5)*size/4,
					Y: center.Y + (w.rng.Float64()-0.5)*size/4,
				},
			})
		}
	}
	if len(w.factions) > 0 {
		w.AddSettlement(Settlement{ID: "hideout_01", FactionID: BanditFaction, Kind: SettlementHideout, Pos: Vec2{X: size / 2, Y: size / 2}})
	}

	for i := 0; i < cfg.Parties && len(w.factions) > 0; i++ {
		kind := PartyLord
		switch r := w.rng.Float64(); {
		case i == 0:
			kind = PartyMain
		case r < 0.15:
			kind = PartyBandit
		case r < 0.25:
			kind = PartyCaravan
		case r < 0.30:
			kind = PartyMilitia
		}
		faction := w.factions[w.rng.IntN(len(w.factions))]
		if kind == PartyBandit {
			faction = BanditFaction
		}
		home := w.settlements[w.rng.IntN(len(w.settlements))]
		w.AddParty(PartySpec{
			FactionID: faction,
			Kind:      kind,
			Pos:       Vec2{X: home.Pos.X + w.rng.Float64()*10, Y: home.Pos.Y + w.rng.Float64()*10},
			Stats:     w.rollStats(kind),
		})
	}
}

func (w *World) rollStats(kind PartyKind) PartyStats {
	st := PartyStats{
		Troops: 20 + w.rng.IntN(120),
		Food:   10 + w.rng.Float64()*40,
		Morale: 40 + w.rng.Float64()*50,
		Gold:   w.rng.IntN(5000),
		Speed:  3 + w.rng.Float64()*3,
		Traits: Traits{
			Valor:       w.rng.IntN(5) - 2,
			Calculating: w.rng.IntN(5) - 2,
			Honor:       w.rng.IntN(5) - 2,
			Generosity:  w.rng.IntN(5) - 2,
		},
		CreatedAt: w.clock.Now(),
	}
	st.HasLeader = kind == PartyLord || kind == PartyMain
	if kind == PartyBandit {
		st.Gold = 0
		st.Traits = Traits{Valor: 1}
	}
	return st
}

// Advance moves the campaign clock forward by d and lets every party act once. Lifecycle events are
// delivered synchronously to subscribers while parties act.
func (w *World) Advance(d simtime.Duration) {
	if d <= 0 {
		return
	}
	w.clock.Advance(d)
	for _, p := range w.Parties() {
		if p.active {
			w.stepParty(p, d.Hours())
		}
	}
	w.maybeCapture(d.Hours())
}

func (w *World) stepParty(p *Party, hours float64) {
	days := hours / simtime.HoursPerDay
	p.stats.Food = math.Max(0, p.stats.Food-float64(p.stats.Troops)*0.01*days)

	if p.army != "" && p.army != p.id {
		leader := w.parties[p.army]
		if leader == nil || w.rng.Float64() < 0.08 {
			w.leaveArmy(p)
			return
		}
		if !p.attached {
			w.rally(p, leader, hours)
			return
		}
		p.target = leader.target
		p.pos = leader.pos
		return
	}
	if p.army == p.id {
		w.rally(p, p, hours)
		if w.rng.Float64() < 0.04 {
			w.disperse(p.id)
		}
	}

	switch {
	case p.raiding != "":
		if w.rng.Float64() < 0.65 {
			_ = w.LootVillage(p.id, p.raiding)
		} else {
			_ = w.EndRaid(p.id)
		}
		return
	case p.current != "":
		if w.rng.Float64() < 0.5 {
			w.leaveSettlement(p)
		}
		return
	}

	if p.kind == PartyLord && p.army == "" && w.rng.Float64() < 0.06 {
		if leader := w.nearestLord(p); leader != nil {
			_ = w.JoinArmy(p.id, leader.id)
			return
		}
	}
	if p.target == "" {
		w.pickTarget(p)
	}
	if p.target != "" {
		w.travel(p, hours)
	}

	if w.rng.Float64() < removalChance(p.kind)*days {
		_ = w.RemoveParty(p.id)
	}
}

// rally moves a called party toward its leader and attaches it on arrival. A leader attaches to
// its own army without moving. Nothing attaches in the step that issued the call.
func (w *World) rally(p, leader *Party, hours float64) {
	if p.attached || !p.calledAt.Before(w.clock.Now()) {
		return
	}
	if p != leader {
		dist := p.pos.Distance(leader.pos)
		step := p.stats.Speed * hours
		if dist > step && dist > 0 {
			f := step / dist
			p.pos = Vec2{X: p.pos.X + (leader.pos.X-p.pos.X)*f, Y: p.pos.Y + (leader.pos.Y-p.pos.Y)*f}
			return
		}
	}
	w.attach(p, leader)
}

func removalChance(kind PartyKind) float64 {
	switch kind {
	case PartyMain:
		return 0
	case PartyBandit:
		return 0.03
	default:
		return 0.005
	}
}

func (w *World) nearestLord(p *Party) *Party {
	var best *Party
	bestD := math.MaxFloat64
	for _, o := range w.Parties() {
		if o.id == p.id || o.faction != p.faction || o.kind != PartyLord {
			continue
		}
		if o.army != "" && o.army != o.id {
			continue
		}
		if d := o.pos.DistanceSquared(p.pos); d < bestD {
			best, bestD = o, d
		}
	}
	return best
}

func (w *World) pickTarget(p *Party) {
	var hostile, friendly []Settlement
	for _, s := range w.settlements {
		if s.Kind == SettlementVillage && w.AtWar(p.faction, s.FactionID) {
			hostile = append(hostile, s)
		} else if s.FactionID == p.faction {
			friendly = append(friendly, s)
		}
	}
	aggressive := p.kind == PartyBandit || w.rng.Float64() < 0.2+0.1*float64(p.stats.Traits.Valor)
	switch {
	case aggressive && len(hostile) > 0:
		p.target = hostile[w.rng.IntN(len(hostile))].ID
	case len(friendly) > 0:
		p.target = friendly[w.rng.IntN(len(friendly))].ID
	case len(w.settlements) > 0:
		p.target = w.settlements[w.rng.IntN(len(w.settlements))].ID
	}
}

func (w *World) travel(p *Party, hours float64) {
	s, ok := w.Settlement(p.target)
	if !ok {
		p.target = ""
		return
	}
	dist := p.pos.Distance(s.Pos)
	step := p.stats.Speed * hours
	if dist > step && dist > 0 {
		f := step / dist
		p.pos = Vec2{X: p.pos.X + (s.Pos.X-p.pos.X)*f, Y: p.pos.Y + (s.Pos.Y-p.pos.Y)*f}
		return
	}
	p.pos = s.Pos
	if s.Kind == SettlementVillage && w.AtWar(p.faction, s.FactionID) {
		p.target = ""
		p.raiding = s.ID
		return
	}
	_ = w.EnterSettlement(p.id, s.ID)
}

func (w *World) maybeCapture(hours float64) {
	if w.rng.Float64() >= 0.01*hours/simtime.HoursPerDay {
		return
	}
	var candidates []Settlement
	for _, s := range w.settlements {
		if s.Kind == SettlementTown || s.Kind == SettlementCastle {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return
	}
	s := candidates[w.rng.IntN(len(candidates))]
	for _, f := range w.factions {
		if w.AtWar(f, s.FactionID) {
			_ = w.CaptureSettlement(s.ID, f)
			return
		}
	}
}

package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"campaignlab.ai/internal/sim/simtime"
)

// BanditFaction is at war with everyone.
const BanditFaction = "looters"

var (
	ErrUnknownParty      = errors.New("unknown party")
	ErrUnknownSettlement = errors.New("unknown settlement")
)

type Config struct {
	Seed                  int64
	Factions              int
	SettlementsPerFaction int
	Parties               int
	MapSize               float64
	GameVersion           string
}

func DefaultConfig() Config {
	return Config{
		Seed:                  1337,
		Factions:              4,
		SettlementsPerFaction: 8,
		Parties:               40,
		MapSize:               600,
		GameVersion:           "Native@v1.2.9",
	}
}

type PartySpec struct {
	ID        string
	FactionID string
	Kind      PartyKind
	Pos       Vec2
	Stats     PartyStats
}

// World is a deterministic in-memory campaign: factions, settlements and parties that wander,
// raid, form armies and get destroyed. It is single-threaded like the engine that observes it.
type World struct {
	cfg   Config
	clock *simtime.ManualClock
	src   *rand.PCG
	rng   *rand.Rand

	factions    []string
	wars        map[string]bool
	settlements []Settlement
	index       map[string]int
	parties     map[string]*Party
	nextParty   int

	listeners []Listener
}

// NewEmpty returns a world with no content, for hand-built scenarios.
func NewEmpty(cfg Config) *World {
	src := rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15)
	if cfg.GameVersion == "" {
		cfg.GameVersion = DefaultConfig().GameVersion
	}
	return &World{
		cfg:     cfg,
		clock:   simtime.NewManualClock(0),
		src:     src,
		rng:     rand.New(src),
		wars:    map[string]bool{},
		index:   map[string]int{},
		parties: map[string]*Party{},
	}
}

// New generates a populated campaign map from cfg.Seed.
func New(cfg Config) *World {
	w := NewEmpty(cfg)
	w.generate()
	return w
}

func (w *World) Config() Config { return w.cfg }

func (w *World) Clock() *simtime.ManualClock { return w.clock }

func (w *World) Now() simtime.Time { return w.clock.Now() }

func (w *World) GameVersion() string { return w.cfg.GameVersion }

func (w *World) Subscribe(l Listener) {
	if l != nil {
		w.listeners = append(w.listeners, l)
	}
}

func (w *World) emit(ev Event) {
	ev.At = w.clock.Now()
	for _, l := range w.listeners {
		l(ev)
	}
}

func (w *World) Factions() []string { return append([]string(nil), w.factions...) }

func (w *World) AddFaction(id string) {
	for _, f := range w.factions {
		if f == id {
			return
		}
	}
	w.factions = append(w.factions, id)
	sort.Strings(w.factions)
}

func warKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (w *World) DeclareWar(a, b string) {
	if a == b {
		return
	}
	w.wars[warKey(a, b)] = true
}

func (w *World) MakePeace(a, b string) { delete(w.wars, warKey(a, b)) }

func (w *World) AtWar(a, b string) bool {
	if a == "" || b == "" || a == b {
		return false
	}
	if a == BanditFaction || b == BanditFaction {
		return true
	}
	return w.wars[warKey(a, b)]
}

func (w *World) AddSettlement(s Settlement) {
	if i, ok := w.index[s.ID]; ok {
		w.settlements[i] = s
		return
	}
	w.settlements = append(w.settlements, s)
	sort.Slice(w.settlements, func(i, j int) bool { return w.settlements[i].ID < w.settlements[j].ID })
	w.reindex()
}

func (w *World) reindex() {
	w.index = make(map[string]int, len(w.settlements))
	for i, s := range w.settlements {
		w.index[s.ID] = i
	}
}

func (w *World) Settlements() []Settlement { return append([]Settlement(nil), w.settlements...) }

func (w *World) Settlement(id string) (Settlement, bool) {
	i, ok := w.index[id]
	if !ok {
		return Settlement{}, false
	}
	return w.settlements[i], true
}

func (w *World) AddParty(spec PartySpec) *Party {
	if spec.ID == "" {
		w.nextParty++
		spec.ID = fmt.Sprintf("party_%04d", w.nextParty)
	}
	st := spec.Stats
	if st.Speed <= 0 {
		st.Speed = 4
	}
	if st.CreatedAt == 0 {
		st.CreatedAt = w.clock.Now()
	}
	p := &Party{
		w:       w,
		id:      spec.ID,
		faction: spec.FactionID,
		kind:    spec.Kind,
		active:  true,
		pos:     spec.Pos,
		stats:   st,
	}
	w.parties[p.id] = p
	return p
}

func (w *World) Party(id string) (*Party, bool) {
	p, ok := w.parties[id]
	return p, ok
}

// Parties returns every live party ordered by ID.
func (w *World) Parties() []*Party {
	ids := make([]string, 0, len(w.parties))
	for id := range w.parties {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Party, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.parties[id])
	}
	return out
}

func (w *World) party(id string) (*Party, error) {
	p := w.parties[id]
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParty, id)
	}
	return p, nil
}

func (w *World) SetTarget(partyID, settlementID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if settlementID != "" {
		if _, ok := w.index[settlementID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSettlement, settlementID)
		}
	}
	p.target = settlementID
	return nil
}

func (w *World) MoveTo(partyID string, pos Vec2) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	p.pos = pos
	return nil
}

// JoinArmy calls the party into leaderID's army, creating the army if needed. The party counts as
// in the army from now on but only attaches, emitting EventArmyJoined, on a later Advance once it
// has reached its leader (see AttachToArmy).
func (w *World) JoinArmy(partyID, leaderID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	leader, err := w.party(leaderID)
	if err != nil {
		return err
	}
	if leader.army != "" && leader.army != leader.id {
		return fmt.Errorf("party %s already serves in army of %s", leader.id, leader.army)
	}
	if p.army == leaderID {
		return nil
	}
	if p.army != "" {
		w.leaveArmy(p)
	}
	now := w.clock.Now()
	if leader.army == "" {
		leader.army = leader.id
		leader.attached = false
		leader.calledAt = now
	}
	p.army = leader.id
	p.attached = false
	p.calledAt = now
	if p.id != leader.id {
		p.target = leader.target
	}
	return nil
}

// AttachToArmy completes a pending call: the party moves onto its leader and EventArmyJoined is
// emitted. Attached parties are left alone.
func (w *World) AttachToArmy(partyID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if p.army == "" {
		return fmt.Errorf("party %s was not called into an army", p.id)
	}
	leader := w.parties[p.army]
	if leader == nil {
		return fmt.Errorf("%w: %s", ErrUnknownParty, p.army)
	}
	if !p.attached {
		w.attach(p, leader)
	}
	return nil
}

func (w *World) attach(p, leader *Party) {
	if p != leader {
		p.pos = leader.pos
		p.target = leader.target
	}
	p.attached = true
	w.emit(Event{Kind: EventArmyJoined, PartyID: p.id, LeaderID: leader.id})
}

func (w *World) LeaveArmy(partyID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if p.army == "" {
		return nil
	}
	if p.army == p.id {
		w.disperse(p.id)
		return nil
	}
	w.leaveArmy(p)
	return nil
}

func (w *World) leaveArmy(p *Party) {
	leader := p.army
	p.army = ""
	p.attached = false
	w.emit(Event{Kind: EventArmyLeft, PartyID: p.id, LeaderID: leader})
}

func (w *World) DisperseArmy(leaderID string) error {
	if _, err := w.party(leaderID); err != nil {
		return err
	}
	w.disperse(leaderID)
	return nil
}

func (w *World) disperse(leaderID string) {
	found := false
	for _, p := range w.Parties() {
		if p.army == leaderID {
			p.army = ""
			p.attached = false
			found = true
		}
	}
	if found {
		w.emit(Event{Kind: EventArmyDispersed, PartyID: leaderID, LeaderID: leaderID})
	}
}

func (w *World) EnterSettlement(partyID, settlementID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	s, ok := w.Settlement(settlementID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, settlementID)
	}
	if p.current == s.ID {
		return nil
	}
	if p.current != "" {
		w.leaveSettlement(p)
	}
	p.current = s.ID
	p.pos = s.Pos
	if p.target == s.ID {
		p.target = ""
	}
	w.emit(Event{Kind: EventSettlementEntered, PartyID: p.id, SettlementID: s.ID})
	return nil
}

func (w *World) LeaveSettlement(partyID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if p.current != "" {
		w.leaveSettlement(p)
	}
	return nil
}

func (w *World) leaveSettlement(p *Party) {
	sid := p.current
	p.current = ""
	w.emit(Event{Kind: EventSettlementLeft, PartyID: p.id, SettlementID: sid})
}

// BeginRaid marks the party as raiding a village; the raid resolves with LootVillage or EndRaid.
func (w *World) BeginRaid(partyID, villageID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if _, ok := w.Settlement(villageID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, villageID)
	}
	p.raiding = villageID
	return nil
}

func (w *World) LootVillage(partyID, villageID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if _, ok := w.Settlement(villageID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, villageID)
	}
	p.raiding = ""
	p.stats.Gold += 400
	p.stats.Morale = math.Min(100, p.stats.Morale+5)
	w.emit(Event{Kind: EventVillageLooted, PartyID: p.id, SettlementID: villageID, Looted: true})
	return nil
}

// EndRaid ends the party's raid without loot.
func (w *World) EndRaid(partyID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	vid := p.raiding
	p.raiding = ""
	p.stats.Morale = math.Max(0, p.stats.Morale-5)
	w.emit(Event{Kind: EventRaidEnded, PartyID: p.id, SettlementID: vid})
	return nil
}

func (w *World) CaptureSettlement(settlementID, factionID string) error {
	i, ok := w.index[settlementID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSettlement, settlementID)
	}
	if w.settlements[i].FactionID == factionID {
		return nil
	}
	w.settlements[i].FactionID = factionID
	w.emit(Event{Kind: EventSettlementCaptured, SettlementID: settlementID, FactionID: factionID})
	return nil
}

// RemoveParty destroys the party. Its army, if it led one, disperses first.
func (w *World) RemoveParty(partyID string) error {
	p, err := w.party(partyID)
	if err != nil {
		return err
	}
	if p.army == p.id {
		w.disperse(p.id)
	} else if p.army != "" {
		w.leaveArmy(p)
	}
	p.active = false
	delete(w.parties, p.id)
	w.emit(Event{Kind: EventPartyRemoved, PartyID: p.id})
	return nil
}

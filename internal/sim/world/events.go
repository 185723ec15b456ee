package world

import "campaignlab.ai/internal/sim/simtime"

type EventKind int

const (
	EventArmyJoined EventKind = iota + 1
	EventArmyLeft
	EventArmyDispersed
	EventSettlementEntered
	EventSettlementLeft
	EventVillageLooted
	EventRaidEnded
	EventSettlementCaptured
	EventPartyRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventArmyJoined:
		return "ArmyJoined"
	case EventArmyLeft:
		return "ArmyLeft"
	case EventArmyDispersed:
		return "ArmyDispersed"
	case EventSettlementEntered:
		return "SettlementEntered"
	case EventSettlementLeft:
		return "SettlementLeft"
	case EventVillageLooted:
		return "VillageLooted"
	case EventRaidEnded:
		return "RaidEnded"
	case EventSettlementCaptured:
		return "SettlementCaptured"
	case EventPartyRemoved:
		return "PartyRemoved"
	default:
		return "Unknown"
	}
}

// Event is a world lifecycle notification. Which fields are set depends on Kind:
//   - Army*: PartyID (member) and LeaderID
//   - Settlement*: PartyID and SettlementID; captures set FactionID to the captor
//   - VillageLooted / RaidEnded: PartyID (raider), SettlementID, Looted
//   - PartyRemoved: PartyID
type Event struct {
	Kind         EventKind
	At           simtime.Time
	PartyID      string
	LeaderID     string
	SettlementID string
	FactionID    string
	Looted       bool
}

type Listener func(Event)

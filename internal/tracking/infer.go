package tracking

import "campaignlab.ai/internal/decision"

// Infer diffs two consecutive fingerprints. Rules are checked in priority order and the first
// match wins, so at most one decision results per tick.
func Infer(prev, cur Fingerprint) (decision.Kind, string) {
	switch {
	case !prev.InArmy && cur.InArmy && cur.LeaderID != "":
		return decision.KindJoinGroup, cur.LeaderID
	case cur.TargetID != "" && cur.TargetID != prev.TargetID:
		return decision.KindMoveToObjective, cur.TargetID
	case !prev.NearHostile && cur.NearHostile:
		return decision.KindRaidObjective, cur.HostileID
	case !prev.Inside && cur.Inside:
		return decision.KindEnterObjective, cur.InsideID
	}
	return decision.KindNone, ""
}

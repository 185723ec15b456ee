package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignlab.ai/internal/decision"
	"campaignlab.ai/internal/sim/simtime"
	"campaignlab.ai/internal/sim/world"
	"campaignlab.ai/internal/tracking"
)

func TestWriteReadSnapshot(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.Parties = 6
	w := world.New(cfg)
	w.Advance(3 * simtime.Day)
	ws, err := w.Export()
	require.NoError(t, err)

	ctx := decision.NewContextBuilder(2).
		Add("troopCount", decision.Int(20)).
		Add("targetFactionId", decision.Null()).
		Build()
	es := tracking.State{
		Entries: []tracking.EntryState{{
			AgentID: "party_0001",
			Decision: decision.Decision{
				ID: "d1", Timestamp: simtime.FromDays(2), PartyID: "party_0001",
				Kind: decision.KindMoveToObjective, TargetID: "town_01", Context: ctx,
			},
			Status: decision.StatusExecuting,
		}},
		Fingerprints: map[string]tracking.Fingerprint{"party_0001": {TargetID: "town_01"}},
	}

	path := filepath.Join(t.TempDir(), "snapshots", "run.snap.zst")
	in := SnapshotV1{
		Header:              Header{Version: Version, RunID: "r1", Hours: w.Now().Hours(), Label: w.Now().String()},
		SampleIntervalHours: 24,
		HostileRadius:       20,
		LastFlushPeriod:     3,
		World:               ws,
		Engine:              es,
	}
	require.NoError(t, WriteSnapshot(path, in))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, in.Header, h)

	out, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, in.Header, out.Header)
	assert.Equal(t, int64(3), out.LastFlushPeriod)
	require.Len(t, out.Engine.Entries, 1)
	got := out.Engine.Entries[0]
	assert.Equal(t, decision.StatusExecuting, got.Status)
	assert.Equal(t, "d1", got.Decision.ID)
	b, err := got.Decision.Context.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"troopCount":20,"targetFactionId":null}`, string(b))
	assert.Equal(t, es.Fingerprints, out.Engine.Fingerprints)

	restored, err := world.Restore(out.World)
	require.NoError(t, err)
	assert.Equal(t, len(w.Parties()), len(restored.Parties()))
	assert.Equal(t, w.Now(), restored.Now())
}

func TestReadSnapshotRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	require.NoError(t, WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}))
	_, err := ReadSnapshot(path)
	assert.Error(t, err)
}

package lab

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	persistlog "campaignlab.ai/internal/persistence/log"
)

type ReplayResult struct {
	Digest    string
	Decisions int
	Outcomes  int
}

// Replay resumes the snapshot at path, runs days campaign days into a scratch directory and
// digests the records written. Decision ids are random per run, so each record is digested with
// the ordinal of its decision in place of the id. Two replays of one snapshot must agree.
func Replay(cfg Config, path string, days int) (ReplayResult, error) {
	var res ReplayResult
	dir, err := os.MkdirTemp("", "campaignlab-replay-")
	if err != nil {
		return res, err
	}
	defer os.RemoveAll(dir)

	cfg.SnapshotPath = ""
	cfg.ArchiveSeasons = false
	writer := persistlog.NewWriter(persistlog.StaticDir(dir))
	r, err := Resume(cfg, path, writer)
	if err != nil {
		return res, err
	}
	if err := r.RunDays(days); err != nil {
		return res, err
	}
	if err := writer.Flush(); err != nil {
		return res, err
	}

	h := sha256.New()
	ordinal := map[string]string{}
	err = persistlog.ScanFile(filepath.Join(dir, persistlog.DecisionsFile), func(n int, line []byte) error {
		var d persistlog.DecisionRecord
		if err := json.Unmarshal(line, &d); err != nil {
			return fmt.Errorf("decisions line %d: %w", n, err)
		}
		ordinal[d.DecisionID] = strconv.Itoa(res.Decisions)
		d.DecisionID = ordinal[d.DecisionID]
		res.Decisions++
		return digestRecord(h, d)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return res, err
	}
	err = persistlog.ScanFile(filepath.Join(dir, persistlog.OutcomesFile), func(n int, line []byte) error {
		var o persistlog.OutcomeRecord
		if err := json.Unmarshal(line, &o); err != nil {
			return fmt.Errorf("outcomes line %d: %w", n, err)
		}
		if id, ok := ordinal[o.DecisionID]; ok {
			o.DecisionID = id
		} else {
			// Decided before the snapshot.
			o.DecisionID = "pre:" + o.DecisionID
		}
		res.Outcomes++
		return digestRecord(h, o)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return res, err
	}
	res.Digest = hex.EncodeToString(h.Sum(nil))
	return res, nil
}

func digestRecord(h io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = h.Write(b)
	_, _ = h.Write([]byte{'\n'})
	return nil
}

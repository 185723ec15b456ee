package indexdb

import (
	"context"
	"encoding/json"
	"fmt"

	persistlog "campaignlab.ai/internal/persistence/log"
)

type IngestResult struct {
	Decisions int
	Outcomes  int
	Skipped   int
}

// IngestFile loads a decisions or outcomes log (.jsonl or .jsonl.zst) in one transaction. Lines
// are classified by their type key; unparseable lines are skipped. Re-ingesting is idempotent.
func (s *SQLiteIndex) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	var res IngestResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin ingest: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = persistlog.ScanFile(path, func(n int, line []byte) error {
		var head struct {
			DecisionType *string `json:"decisionType"`
			OutcomeType  *string `json:"outcomeType"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			res.Skipped++
			return nil
		}
		switch {
		case head.DecisionType != nil:
			var r persistlog.DecisionRecord
			if err := json.Unmarshal(line, &r); err != nil || r.DecisionID == "" {
				res.Skipped++
				return nil
			}
			if err := execDecision(ctx, tx, insertDecisionSQL, r); err != nil {
				return fmt.Errorf("%s:%d: %w", path, n, err)
			}
			res.Decisions++
		case head.OutcomeType != nil:
			var r persistlog.OutcomeRecord
			if err := json.Unmarshal(line, &r); err != nil || r.DecisionID == "" {
				res.Skipped++
				return nil
			}
			if err := execOutcome(ctx, tx, insertOutcomeSQL, r); err != nil {
				return fmt.Errorf("%s:%d: %w", path, n, err)
			}
			res.Outcomes++
		default:
			res.Skipped++
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit ingest: %w", err)
	}
	return res, nil
}

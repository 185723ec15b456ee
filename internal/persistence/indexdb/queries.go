package indexdb

import (
	"context"
	"fmt"
)

type TypeCount struct {
	Type  string
	Count int
}

// DecisionCounts groups indexed decisions by decisionType, most frequent first.
func (s *SQLiteIndex) DecisionCounts(ctx context.Context) ([]TypeCount, error) {
	return s.counts(ctx, `SELECT decision_type, COUNT(*) FROM decisions GROUP BY decision_type ORDER BY COUNT(*) DESC, decision_type`)
}

// OutcomeCounts groups indexed outcomes by outcomeType, most frequent first.
func (s *SQLiteIndex) OutcomeCounts(ctx context.Context) ([]TypeCount, error) {
	return s.counts(ctx, `SELECT outcome_type, COUNT(*) FROM outcomes GROUP BY outcome_type ORDER BY COUNT(*) DESC, outcome_type`)
}

func (s *SQLiteIndex) counts(ctx context.Context, q string) ([]TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()
	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

type KindDuration struct {
	DecisionType string
	OutcomeType  string
	Count        int
	MeanHours    float64
}

// Durations reports mean decision duration per (decisionType, outcomeType) pair for outcomes whose
// decision is indexed.
func (s *SQLiteIndex) Durations(ctx context.Context) ([]KindDuration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.decision_type, o.outcome_type, COUNT(*), AVG(o.duration_hours)
		FROM outcomes o JOIN decisions d ON d.decision_id = o.decision_id
		GROUP BY d.decision_type, o.outcome_type
		ORDER BY d.decision_type, o.outcome_type`)
	if err != nil {
		return nil, fmt.Errorf("query durations: %w", err)
	}
	defer rows.Close()
	var out []KindDuration
	for rows.Next() {
		var kd KindDuration
		if err := rows.Scan(&kd.DecisionType, &kd.OutcomeType, &kd.Count, &kd.MeanHours); err != nil {
			return nil, err
		}
		out = append(out, kd)
	}
	return out, rows.Err()
}

// Seasons lists archived seasons in order.
func (s *SQLiteIndex) Seasons(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT season FROM seasons ORDER BY season`)
	if err != nil {
		return nil, fmt.Errorf("query seasons: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

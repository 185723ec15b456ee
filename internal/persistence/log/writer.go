// Package log is the durable sink for decisions and outcomes: two append-only newline-delimited
// JSON files fed from lock-free in-memory queues.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"campaignlab.ai/internal/decision"
)

const (
	DecisionsFile = "decisions.jsonl"
	OutcomesFile  = "outcomes.jsonl"
)

// DirResolver locates (and creates) the output directory. It runs on the first flush that has
// records, and again on later flushes until it succeeds once.
type DirResolver func() (string, error)

// StaticDir resolves to dir, creating it if needed.
func StaticDir(dir string) DirResolver {
	return func() (string, error) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", err
		}
		return abs, nil
	}
}

// Mirror receives every record after it has been appended to its file.
type Mirror interface {
	IndexDecision(DecisionRecord)
	IndexOutcome(OutcomeRecord)
}

type Writer struct {
	resolve DirResolver
	mirror  Mirror
	log     *zap.Logger

	decisions *queue[*decision.Decision]
	outcomes  *queue[*decision.Outcome]

	mu  sync.Mutex
	dir string

	written struct {
		decisions atomic.Int64
		outcomes  atomic.Int64
		flushes   atomic.Int64
	}
}

type Option func(*Writer)

func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

func WithMirror(m Mirror) Option {
	return func(w *Writer) { w.mirror = m }
}

func NewWriter(resolve DirResolver, opts ...Option) *Writer {
	w := &Writer{
		resolve:   resolve,
		log:       zap.NewNop(),
		decisions: newQueue[*decision.Decision](),
		outcomes:  newQueue[*decision.Outcome](),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// EnqueueDecision queues d for the next flush. It never blocks; nil is ignored.
func (w *Writer) EnqueueDecision(d *decision.Decision) {
	if d == nil {
		return
	}
	w.decisions.push(d)
}

// EnqueueOutcome queues o for the next flush. It never blocks; nil is ignored.
func (w *Writer) EnqueueOutcome(o *decision.Outcome) {
	if o == nil {
		return
	}
	w.outcomes.push(o)
}

// Pending reports the number of queued records.
func (w *Writer) Pending() (decisions, outcomes int) {
	return w.decisions.len(), w.outcomes.len()
}

// Dir returns the resolved output directory, or "" before the first successful resolution.
func (w *Writer) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

type Totals struct {
	Decisions int64
	Outcomes  int64
	Flushes   int64
}

func (w *Writer) Totals() Totals {
	return Totals{
		Decisions: w.written.decisions.Load(),
		Outcomes:  w.written.outcomes.Load(),
		Flushes:   w.written.flushes.Load(),
	}
}

// Flush drains both queues and appends their records to the log files. Concurrent calls are
// serialized. With nothing queued no file is touched. A directory resolution failure leaves the
// records queued; records that fail to write after being dequeued are lost.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.decisions.len() == 0 && w.outcomes.len() == 0 {
		return nil
	}
	dir, err := w.dirLocked()
	if err != nil {
		w.log.Error("resolve log dir", zap.Error(err))
		return fmt.Errorf("resolve log dir: %w", err)
	}

	ds := w.decisions.drain()
	outs := w.outcomes.drain()

	drecs := make([]DecisionRecord, 0, len(ds))
	for _, d := range ds {
		drecs = append(drecs, DecisionRecordOf(d))
	}
	orecs := make([]OutcomeRecord, 0, len(outs))
	for _, o := range outs {
		orecs = append(orecs, OutcomeRecordOf(o))
	}

	var errs []error
	if err := appendLines(filepath.Join(dir, DecisionsFile), drecs); err != nil {
		errs = append(errs, fmt.Errorf("append %s: %w", DecisionsFile, err))
	} else {
		w.written.decisions.Add(int64(len(drecs)))
		if w.mirror != nil {
			for _, r := range drecs {
				w.mirror.IndexDecision(r)
			}
		}
	}
	if err := appendLines(filepath.Join(dir, OutcomesFile), orecs); err != nil {
		errs = append(errs, fmt.Errorf("append %s: %w", OutcomesFile, err))
	} else {
		w.written.outcomes.Add(int64(len(orecs)))
		if w.mirror != nil {
			for _, r := range orecs {
				w.mirror.IndexOutcome(r)
			}
		}
	}
	w.written.flushes.Add(1)

	if err := errors.Join(errs...); err != nil {
		w.log.Error("flush decision logs", zap.Error(err))
		return err
	}
	w.log.Info("flushed decision logs",
		zap.Int("decisions", len(drecs)),
		zap.Int("outcomes", len(orecs)),
		zap.String("dir", dir))
	return nil
}

func (w *Writer) dirLocked() (string, error) {
	if w.dir != "" {
		return w.dir, nil
	}
	if w.resolve == nil {
		return "", errors.New("no log directory resolver")
	}
	dir, err := w.resolve()
	if err != nil {
		return "", err
	}
	w.dir = dir
	return dir, nil
}

// appendLines writes one JSON object per line to path, opening and closing the file within the
// call. An empty batch does not touch the file.
func appendLines[T any](path string, recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 128*1024)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

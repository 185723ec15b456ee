// Package logcheck validates decision and outcome logs: every line against an embedded JSON
// schema, then the semantic rules a schema cannot express.
package logcheck

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	persistlog "campaignlab.ai/internal/persistence/log"
	"campaignlab.ai/internal/sim/simtime"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://campaignlab.ai/schemas/"

// Context keys that are required together once any of them appears.
var metadataKeys = []string{"contextSchemaVersion", "campaignLabVersion", "gameVersionString"}

type Issue struct {
	File string
	Line int
	Msg  string
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", filepath.Base(i.File), i.Line, i.Msg)
	}
	return fmt.Sprintf("%s: %s", filepath.Base(i.File), i.Msg)
}

type Report struct {
	DecisionsPath string
	OutcomesPath  string
	Decisions     int
	Outcomes      int

	Errors   []Issue
	Warnings []Issue
}

func (r *Report) OK() bool { return len(r.Errors) == 0 }

type Checker struct {
	decision *jsonschema.Schema
	outcome  *jsonschema.Schema
}

func New() (*Checker, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range []string{"decision.schema.json", "outcome.schema.json"} {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	ds, err := c.Compile(schemaBase + "decision.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	ocs, err := c.Compile(schemaBase + "outcome.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile outcome schema: %w", err)
	}
	return &Checker{decision: ds, outcome: ocs}, nil
}

// FindLog returns the path of name in dir, preferring the plain file over its .zst copy, or ""
// when neither exists.
func FindLog(dir, name string) string {
	for _, p := range []string{filepath.Join(dir, name), filepath.Join(dir, name+".zst")} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// CheckDir validates the logs found in dir.
func (c *Checker) CheckDir(ctx context.Context, dir string) (*Report, error) {
	return c.CheckFiles(ctx, FindLog(dir, persistlog.DecisionsFile), FindLog(dir, persistlog.OutcomesFile))
}

// CheckFiles validates both logs concurrently and then cross-checks them. A missing decisions log
// is an error; a missing outcomes log only a warning. The returned error is reserved for read
// failures.
func (c *Checker) CheckFiles(ctx context.Context, decisionsPath, outcomesPath string) (*Report, error) {
	rep := &Report{DecisionsPath: decisionsPath, OutcomesPath: outcomesPath}
	if decisionsPath == "" {
		rep.Errors = append(rep.Errors, Issue{File: persistlog.DecisionsFile, Msg: "decisions log not found"})
	}
	if outcomesPath == "" {
		rep.Warnings = append(rep.Warnings, Issue{File: persistlog.OutcomesFile, Msg: "outcomes log not found (allowed)"})
	}

	var (
		dres = &decisionPass{ids: map[string]struct{}{}}
		ores = &outcomePass{terminal: map[string]int{}}
	)
	g, gctx := errgroup.WithContext(ctx)
	if decisionsPath != "" {
		g.Go(func() error { return c.checkDecisions(gctx, decisionsPath, dres) })
	}
	if outcomesPath != "" {
		g.Go(func() error { return c.checkOutcomes(gctx, outcomesPath, ores) })
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	rep.Decisions = dres.count
	rep.Outcomes = ores.count
	rep.Errors = append(rep.Errors, dres.errs...)
	rep.Errors = append(rep.Errors, ores.errs...)
	rep.Warnings = append(rep.Warnings, ores.warns...)

	if decisionsPath != "" {
		for _, ref := range ores.refs {
			if _, ok := dres.ids[ref.id]; !ok {
				rep.Warnings = append(rep.Warnings, Issue{File: outcomesPath, Line: ref.line, Msg: fmt.Sprintf("outcome for unknown decision %s", ref.id)})
			}
		}
	}
	for _, id := range ores.order {
		if n := ores.terminal[id]; n > 1 {
			rep.Errors = append(rep.Errors, Issue{File: outcomesPath, Msg: fmt.Sprintf("decision %s has %d terminal outcomes", id, n)})
		}
	}
	return rep, nil
}

type decisionPass struct {
	count int
	ids   map[string]struct{}
	errs  []Issue
}

func (c *Checker) checkDecisions(ctx context.Context, path string, res *decisionPass) error {
	return persistlog.ScanFile(path, func(n int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.count++
		fail := func(format string, args ...any) {
			res.errs = append(res.errs, Issue{File: path, Line: n, Msg: fmt.Sprintf(format, args...)})
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			fail("invalid JSON: %v", err)
			return nil
		}
		if err := c.decision.Validate(v); err != nil {
			fail("schema: %s", flatten(err))
			return nil
		}
		m := v.(map[string]any)
		id := m["decisionId"].(string)
		if _, dup := res.ids[id]; dup {
			fail("duplicate decisionId %s", id)
		}
		res.ids[id] = struct{}{}
		if _, err := simtime.Parse(m["timestamp"].(string)); err != nil {
			fail("%v", err)
		}
		if ctxObj, ok := m["context"].(map[string]any); ok {
			present := 0
			for _, k := range metadataKeys {
				if _, ok := ctxObj[k]; ok {
					present++
				}
			}
			if present > 0 && present < len(metadataKeys) {
				for _, k := range metadataKeys {
					if _, ok := ctxObj[k]; !ok {
						fail("context missing %q", k)
					}
				}
			}
		}
		return nil
	})
}

type outcomeRef struct {
	id   string
	line int
}

type outcomePass struct {
	count    int
	refs     []outcomeRef
	terminal map[string]int
	order    []string
	errs     []Issue
	warns    []Issue
}

func (c *Checker) checkOutcomes(ctx context.Context, path string, res *outcomePass) error {
	return persistlog.ScanFile(path, func(n int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.count++
		fail := func(format string, args ...any) {
			res.errs = append(res.errs, Issue{File: path, Line: n, Msg: fmt.Sprintf(format, args...)})
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			fail("invalid JSON: %v", err)
			return nil
		}
		if err := c.outcome.Validate(v); err != nil {
			fail("schema: %s", flatten(err))
			return nil
		}
		m := v.(map[string]any)
		id := m["decisionId"].(string)
		res.refs = append(res.refs, outcomeRef{id: id, line: n})
		if _, err := simtime.Parse(m["resolutionTime"].(string)); err != nil {
			fail("%v", err)
		}
		if d, ok := m["durationHours"].(float64); ok && d < 0 {
			fail("negative durationHours %g", d)
		}
		if m["outcomeType"] == "Error" {
			note, _ := m["notes"].(string)
			res.warns = append(res.warns, Issue{File: path, Line: n, Msg: fmt.Sprintf("invariant violation recorded for %s: %s", id, note)})
			return nil
		}
		if res.terminal[id] == 0 {
			res.order = append(res.order, id)
		}
		res.terminal[id]++
		return nil
	})
}

func flatten(err error) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(err.Error(), "\n", "; ")), " ")
}

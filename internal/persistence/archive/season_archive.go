// Package archive stores compressed per-season copies of the decision logs.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	persistlog "campaignlab.ai/internal/persistence/log"
)

type SeasonArchiveMeta struct {
	Season        int      `json:"season"`
	Label         string   `json:"label,omitempty"`
	DecisionLines int      `json:"decision_lines"`
	OutcomeLines  int      `json:"outcome_lines"`
	Files         []string `json:"files"`
	CreatedAt     string   `json:"created_at"`
}

// Dir is where season n is archived under logDir.
func Dir(logDir string, season int) string {
	return filepath.Join(logDir, "archives", fmt.Sprintf("season_%03d", season))
}

// ArchiveSeason writes zstd-compressed copies of the live decision and outcome logs into
// logDir/archives/season_<NNN>/ together with meta.json. The live logs are left untouched; a
// missing log is skipped. Archiving the same season again overwrites the previous copy.
func ArchiveSeason(logDir string, season int, label string) (SeasonArchiveMeta, error) {
	meta := SeasonArchiveMeta{Season: season, Label: label}
	if season < 0 {
		return meta, fmt.Errorf("invalid season %d", season)
	}
	dir := Dir(logDir, season)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return meta, err
	}

	for _, name := range []string{persistlog.DecisionsFile, persistlog.OutcomesFile} {
		src := filepath.Join(logDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dst := filepath.Join(dir, name+".zst")
		n, err := compressFile(src, dst)
		if err != nil {
			return meta, fmt.Errorf("archive %s: %w", name, err)
		}
		if name == persistlog.DecisionsFile {
			meta.DecisionLines = n
		} else {
			meta.OutcomeLines = n
		}
		meta.Files = append(meta.Files, filepath.Base(dst))
	}

	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return meta, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return meta, err
	}
	return meta, nil
}

// ReadMeta loads meta.json of an archived season.
func ReadMeta(logDir string, season int) (SeasonArchiveMeta, error) {
	var meta SeasonArchiveMeta
	b, err := os.ReadFile(filepath.Join(Dir(logDir, season), "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}

// compressFile copies src into a zstd stream at dst and returns the number of newline-terminated
// lines copied.
func compressFile(src, dst string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() { _ = out.Close() }()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, err
	}
	lines := 0
	br := bufio.NewReaderSize(in, 128*1024)
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if _, werr := enc.Write(chunk); werr != nil {
				_ = enc.Close()
				return 0, werr
			}
			if chunk[len(chunk)-1] == '\n' {
				lines++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil && err != bufio.ErrBufferFull {
			_ = enc.Close()
			return 0, err
		}
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return lines, out.Close()
}

package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Follower tails the live decision and outcome logs of one directory and reports every complete
// line appended after it was created.
type Follower struct {
	dir     string
	watcher *fsnotify.Watcher
	offsets map[string]int64
	log     *zap.Logger
}

// NewFollower starts watching dir. Lines already present are skipped unless fromStart is set.
func NewFollower(dir string, fromStart bool, l *zap.Logger) (*Follower, error) {
	if l == nil {
		l = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	f := &Follower{dir: dir, watcher: w, offsets: map[string]int64{}, log: l}
	if !fromStart {
		for _, name := range []string{DecisionsFile, OutcomesFile} {
			if fi, err := os.Stat(filepath.Join(dir, name)); err == nil {
				f.offsets[name] = fi.Size()
			}
		}
	}
	return f, nil
}

// Run delivers new lines to fn until ctx is done, then closes the watcher. name is the base
// name of the file the line came from.
func (f *Follower) Run(ctx context.Context, fn func(name string, line []byte)) error {
	defer f.watcher.Close()

	// Lines written between NewFollower and Run.
	f.poll(DecisionsFile, fn)
	f.poll(OutcomesFile, fn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if name != DecisionsFile && name != OutcomesFile {
				continue
			}
			f.poll(name, fn)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("watch error", zap.Error(err))
		}
	}
}

// poll reads complete lines past the stored offset. A file that shrank is read from the start.
func (f *Follower) poll(name string, fn func(string, []byte)) {
	path := filepath.Join(f.dir, name)
	fh, err := os.Open(path)
	if err != nil {
		return
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil {
		return
	}
	off := f.offsets[name]
	if fi.Size() < off {
		off = 0
	}
	if fi.Size() == off {
		f.offsets[name] = off
		return
	}
	buf, err := io.ReadAll(io.NewSectionReader(fh, off, fi.Size()-off))
	if err != nil {
		f.log.Warn("read log tail", zap.String("file", name), zap.Error(err))
		return
	}
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		f.offsets[name] = off
		return
	}
	for _, line := range bytes.Split(buf[:end], []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) > 0 {
			fn(name, line)
		}
	}
	f.offsets[name] = off + int64(end) + 1
}

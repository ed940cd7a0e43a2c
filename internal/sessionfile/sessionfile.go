// Package sessionfile persists an operator's selections as TOML so a session
// can be resumed later. Lines without an entry are unresolved.
package sessionfile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/types"
)

const lockRetry = 50 * time.Millisecond

type File struct {
	SessionID  string    `toml:"session_id"`
	Script     string    `toml:"script"`
	SavedAt    time.Time `toml:"saved_at"`
	Current    int       `toml:"current"`
	Skipped    []int     `toml:"skipped"`
	Selections []Entry   `toml:"selections"`
}

type Entry struct {
	Line         int     `toml:"line"`
	ClipID       string  `toml:"clip_id"`
	TrimStartSec float64 `toml:"trim_start_sec"`
	TrimEndSec   float64 `toml:"trim_end_sec"`
}

func FromSnapshot(sessionID, script string, snap selection.Snapshot, savedAt time.Time) File {
	f := File{
		SessionID: sessionID,
		Script:    script,
		SavedAt:   savedAt.UTC().Truncate(time.Second),
		Current:   snap.Current,
		Skipped:   append([]int{}, snap.Skipped...),
	}
	for _, s := range snap.Selections {
		f.Selections = append(f.Selections, Entry{
			Line:         s.LineIndex,
			ClipID:       s.ClipID,
			TrimStartSec: s.TrimStart.Seconds(),
			TrimEndSec:   s.TrimEnd.Seconds(),
		})
	}
	sort.Slice(f.Selections, func(i, j int) bool { return f.Selections[i].Line < f.Selections[j].Line })
	return f
}

func (f File) Snapshot() selection.Snapshot {
	snap := selection.Snapshot{Current: f.Current, Skipped: append([]int(nil), f.Skipped...)}
	for _, e := range f.Selections {
		snap.Selections = append(snap.Selections, types.Selection{
			LineIndex: e.Line,
			ClipID:    e.ClipID,
			TrimStart: types.Seconds(e.TrimStartSec),
			TrimEnd:   types.Seconds(e.TrimEndSec),
		})
	}
	return snap
}

// Save writes f to path atomically while holding "<path>.lock".
func Save(ctx context.Context, path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	unlock, err := lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Load reads a session file. A missing file yields an error wrapping
// fs.ErrNotExist.
func Load(ctx context.Context, path string) (File, error) {
	if _, err := os.Stat(path); err != nil {
		return File{}, fmt.Errorf("read session: %w", err)
	}
	unlock, err := lock(ctx, path)
	if err != nil {
		return File{}, err
	}
	defer unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read session: %w", err)
	}
	var f File
	if err := toml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("parse session %s: %w", path, err)
	}
	return f, nil
}

func lock(ctx context.Context, path string) (func(), error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock session file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock session file: %s is held by another process", fl.Path())
	}
	return func() { _ = fl.Unlock() }, nil
}

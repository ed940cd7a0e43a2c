package sessionfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/types"
)

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions", "ep1.toml")
	snap := selection.Snapshot{
		Current: 2,
		Skipped: []int{1},
		Selections: []types.Selection{
			{LineIndex: 3, ClipID: "b.mp4", TrimStart: 1500 * time.Millisecond, TrimEnd: 4 * time.Second},
			{LineIndex: 0, ClipID: "a.mp4", TrimStart: 0, TrimEnd: 2400 * time.Millisecond},
		},
	}
	saved := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	f := FromSnapshot("3f0c8a1e", "script.txt", snap, saved)

	if err := Save(ctx, path, f); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"session_id", "[[selections]]", "trim_end_sec = 2.4"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("expected %q in:\n%s", want, raw)
		}
	}

	got, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.SavedAt.Equal(saved) || got.SessionID != "3f0c8a1e" {
		t.Fatalf("unexpected header: %+v", got)
	}
	back := got.Snapshot()
	if back.Current != 2 || !reflect.DeepEqual(back.Skipped, []int{1}) {
		t.Fatalf("unexpected snapshot: %+v", back)
	}
	want := []types.Selection{snap.Selections[1], snap.Selections[0]}
	if !reflect.DeepEqual(back.Selections, want) {
		t.Fatalf("selections = %+v, want %+v", back.Selections, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestSave_LockHeldElsewhere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.toml")
	other := flock.New(path + ".lock")
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("lock: %v %v", ok, err)
	}
	defer other.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := Save(ctx, path, File{SessionID: "x"}); err == nil {
		t.Fatalf("expected lock error")
	}
}

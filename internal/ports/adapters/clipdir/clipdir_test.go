package clipdir

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/forPelevin/linecut/internal/types"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestClips_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.MOV", "a.mp4", "notes.txt", ".hidden.mp4", "c.webm"} {
		touch(t, dir, n)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := New(dir).Clips()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.mp4", "b.MOV", "c.webm"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Clips = %v, want %v", got, want)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "take01.mp4")
	touch(t, dir, "take02.MKV")
	d := New(dir)

	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{"take01.mp4", "take01.mp4", false},
		{"take02", "take02.MKV", false},
		{"take02.json", "take02.MKV", false},
		{"take03.mp4", "", true},
		{"../take01.mp4", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := d.Locate(tt.id)
		if tt.wantErr {
			if !errors.Is(err, types.ErrClipNotFound) {
				t.Fatalf("Locate(%q): expected ErrClipNotFound, got %v", tt.id, err)
			}
			continue
		}
		if err != nil || got != filepath.Join(dir, tt.want) {
			t.Fatalf("Locate(%q) = %q, %v", tt.id, got, err)
		}
	}
}

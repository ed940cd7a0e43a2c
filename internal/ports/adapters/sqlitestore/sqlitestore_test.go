package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/forPelevin/linecut/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "transcripts.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tr := types.Transcript{
		ClipID:   "take01.mp4",
		Duration: 2.4,
		Segments: []types.Segment{
			{Start: 0, End: 0.6, Text: "why", Words: []types.Word{{Start: 0, End: 0.6, Word: "why"}}},
			{Start: 0.6, End: 2.4, Text: "are you lying to me"},
		},
	}
	if err := s.Put(ctx, tr); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, types.Transcript{ClipID: "a.mp4", Text: "flat"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	ids, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"a.mp4", "take01.mp4"}) {
		t.Fatalf("List = %v", ids)
	}

	got, err := s.Get(ctx, "take01.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, tr) {
		t.Fatalf("Get = %+v, want %+v", got, tr)
	}
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	first := types.Transcript{ClipID: "x", Segments: []types.Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}}}
	second := types.Transcript{ClipID: "x", Segments: []types.Segment{{Start: 0, End: 3, Text: "c"}}}
	if err := s.Put(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Segments) != 1 || got.Segments[0].Text != "c" {
		t.Fatalf("old segments survived: %+v", got.Segments)
	}
}

func TestStore_Missing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, types.ErrClipNotFound) {
		t.Fatalf("expected ErrClipNotFound, got %v", err)
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := s.Put(context.Background(), types.Transcript{}); err == nil {
		t.Fatalf("expected error without clip id")
	}
}

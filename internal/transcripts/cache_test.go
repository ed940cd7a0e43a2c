package transcripts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forPelevin/linecut/internal/types"
)

type countingStore struct {
	items     map[string]types.Transcript
	ids       []string
	gets      int
	refreshes int
	getErr    map[string]error
	listErr   error
}

func (s *countingStore) List(context.Context) ([]string, error) { return s.ids, s.listErr }

func (s *countingStore) Get(_ context.Context, id string) (types.Transcript, error) {
	s.gets++
	if err := s.getErr[id]; err != nil {
		return types.Transcript{}, err
	}
	tr, ok := s.items[id]
	if !ok {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: id}
	}
	return tr, nil
}

func (s *countingStore) Refresh(context.Context) error {
	s.refreshes++
	return nil
}

func TestCache_GetIsCachedUntilRefresh(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{items: map[string]types.Transcript{"a": {ClipID: "a", Duration: 3}}}
	c := NewCache(st)

	for i := 0; i < 3; i++ {
		if _, err := c.Get(ctx, "a"); err != nil {
			t.Fatal(err)
		}
	}
	if st.gets != 1 {
		t.Fatalf("expected 1 store read, got %d", st.gets)
	}
	d, err := c.ClipDuration(ctx, "a")
	if err != nil || d != 3*time.Second {
		t.Fatalf("ClipDuration = %v, %v", d, err)
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if st.gets != 2 || st.refreshes != 1 {
		t.Fatalf("gets=%d refreshes=%d", st.gets, st.refreshes)
	}
}

func TestCache_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	st := &countingStore{items: map[string]types.Transcript{}}
	c := NewCache(st)
	for i := 0; i < 2; i++ {
		if _, err := c.Get(ctx, "nope"); !errors.Is(err, types.ErrClipNotFound) {
			t.Fatalf("expected ErrClipNotFound, got %v", err)
		}
	}
	if st.gets != 2 {
		t.Fatalf("misses must hit the store, got %d reads", st.gets)
	}
}

func TestLoadAll_SkipsMissing(t *testing.T) {
	st := &countingStore{
		ids:   []string{"a", "gone", "b"},
		items: map[string]types.Transcript{"a": {ClipID: "a"}, "b": {ClipID: "b"}},
	}
	var skipped []string
	got, err := LoadAll(context.Background(), st, func(id string, _ error) { skipped = append(skipped, id) })
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ClipID != "a" || got[1].ClipID != "b" {
		t.Fatalf("unexpected transcripts: %+v", got)
	}
	if len(skipped) != 1 || skipped[0] != "gone" {
		t.Fatalf("unexpected skipped: %v", skipped)
	}
}

func TestLoadAll_SkipsUnreadable(t *testing.T) {
	st := &countingStore{
		ids:    []string{"bad", "good"},
		items:  map[string]types.Transcript{"good": {ClipID: "good"}},
		getErr: map[string]error{"bad": errors.New("decode transcript: unexpected end of JSON input")},
	}
	skipped := map[string]error{}
	got, err := LoadAll(context.Background(), st, func(id string, err error) { skipped[id] = err })
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ClipID != "good" {
		t.Fatalf("unexpected transcripts: %+v", got)
	}
	if skipped["bad"] == nil || len(skipped) != 1 {
		t.Fatalf("unexpected skipped: %v", skipped)
	}
}

func TestLoadAll_Aborts(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		store *countingStore
		want  error
	}{
		{
			name:  "list failure",
			ctx:   context.Background(),
			store: &countingStore{listErr: errors.New("disk on fire")},
		},
		{
			name: "canceled",
			ctx:  canceled,
			store: &countingStore{
				ids:    []string{"a"},
				getErr: map[string]error{"a": context.Canceled},
			},
			want: context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAll(tt.ctx, tt.store, func(string, error) { t.Fatalf("nothing should be skipped") })
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

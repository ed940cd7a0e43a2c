// Package fsstore serves transcripts from a directory. Both "<clip>.json"
// files and "<stem>/out.json" subdirectories are recognised.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/forPelevin/linecut/internal/ports/adapters/clipdir"
	"github.com/forPelevin/linecut/internal/transcripts"
	"github.com/forPelevin/linecut/internal/types"
)

const nestedName = "out.json"

// ClipLister names the source clips so transcript keys can be mapped back to
// clip file names.
type ClipLister interface {
	Clips() ([]string, error)
}

type Store struct {
	dir   string
	clips ClipLister

	mu      sync.RWMutex
	index   map[string]string // clip ID -> transcript path
	scanned bool
}

// New returns a store over dir. clips may be nil, in which case clip IDs are
// the transcript keys themselves.
func New(dir string, clips ClipLister) *Store {
	return &Store{dir: dir, clips: clips}
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Get(ctx context.Context, clipID string) (types.Transcript, error) {
	if err := s.ensure(ctx); err != nil {
		return types.Transcript{}, err
	}
	s.mu.RLock()
	p, ok := s.index[clipID]
	if !ok {
		p, ok = s.byStem(stem(clipID))
	}
	s.mu.RUnlock()
	if !ok {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: clipID}
	}

	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: clipID, Err: err}
	}
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read transcript %s: %w", clipID, err)
	}
	tr, err := transcripts.Decode(b, clipID)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("%s: %w", p, err)
	}
	return tr, nil
}

func (s *Store) Refresh(ctx context.Context) error {
	return s.scan(ctx)
}

// Put writes tr as "<stem>/out.json" and indexes it.
func (s *Store) Put(_ context.Context, tr types.Transcript) error {
	if tr.ClipID == "" {
		return errors.New("put transcript: clip id required")
	}
	p := filepath.Join(s.dir, stem(tr.ClipID), nestedName)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := transcripts.Encode(tr)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		return err
	}
	s.mu.Lock()
	if s.index == nil {
		s.index = make(map[string]string)
	}
	s.index[tr.ClipID] = p
	s.mu.Unlock()
	return nil
}

func (s *Store) ensure(ctx context.Context) error {
	s.mu.RLock()
	done := s.scanned
	s.mu.RUnlock()
	if done {
		return nil
	}
	return s.scan(ctx)
}

func (s *Store) scan(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read transcripts dir: %w", err)
	}

	names := map[string]string{}
	if s.clips != nil {
		clips, err := s.clips.Clips()
		if err != nil {
			return err
		}
		for _, c := range clips {
			names[stem(c)] = c
		}
	}

	index := make(map[string]string, len(entries))
	for _, e := range entries {
		var key, p string
		switch {
		case e.IsDir():
			p = filepath.Join(s.dir, e.Name(), nestedName)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			key = e.Name()
		case strings.EqualFold(filepath.Ext(e.Name()), ".json"):
			key = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			p = filepath.Join(s.dir, e.Name())
		default:
			continue
		}
		id := key
		if name, ok := names[stem(key)]; ok {
			id = name
		}
		if _, dup := index[id]; !dup {
			index[id] = p
		}
	}

	s.mu.Lock()
	s.index = index
	s.scanned = true
	s.mu.Unlock()
	return nil
}

// byStem resolves a clip by stem. When several indexed clips share it, the
// lexically first clip ID wins.
func (s *Store) byStem(st string) (string, bool) {
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		if stem(id) == st {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return s.index[ids[0]], true
}

func stem(name string) string {
	if clipdir.IsVideo(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

package transcripts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/types"
)

// Cache keeps every transcript fetched from the wrapped store until Refresh.
// Transcripts are treated as immutable once loaded.
type Cache struct {
	store ports.TranscriptStore

	mu    sync.RWMutex
	items map[string]types.Transcript
}

func NewCache(store ports.TranscriptStore) *Cache {
	return &Cache{store: store, items: make(map[string]types.Transcript)}
}

func (c *Cache) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}

func (c *Cache) Get(ctx context.Context, clipID string) (types.Transcript, error) {
	c.mu.RLock()
	tr, ok := c.items[clipID]
	c.mu.RUnlock()
	if ok {
		return tr, nil
	}

	tr, err := c.store.Get(ctx, clipID)
	if err != nil {
		return types.Transcript{}, err
	}
	c.mu.Lock()
	c.items[clipID] = tr
	c.mu.Unlock()
	return tr, nil
}

// ClipDuration satisfies selection.DurationLookup.
func (c *Cache) ClipDuration(ctx context.Context, clipID string) (time.Duration, error) {
	tr, err := c.Get(ctx, clipID)
	if err != nil {
		return 0, err
	}
	return tr.ClipDuration(), nil
}

// Refresh drops cached transcripts and refreshes the underlying store.
func (c *Cache) Refresh(ctx context.Context) error {
	if err := c.store.Refresh(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.items = make(map[string]types.Transcript)
	c.mu.Unlock()
	return nil
}

// LoadAll fetches every listed transcript. A clip whose transcript is gone or
// unreadable is reported through skipped and left out; only a failing List or
// a canceled ctx aborts the load.
func LoadAll(ctx context.Context, store ports.TranscriptStore, skipped func(clipID string, err error)) ([]types.Transcript, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Transcript, 0, len(ids))
	for _, id := range ids {
		tr, err := store.Get(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("load transcript %s: %w", id, ctxErr)
			}
			if skipped != nil {
				skipped(id, err)
			}
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

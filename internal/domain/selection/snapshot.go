package selection

import (
	"context"
	"fmt"

	"github.com/forPelevin/linecut/internal/types"
)

// Snapshot is the persisted form of a State: selections keyed by line plus the
// lines the operator explicitly skipped.
type Snapshot struct {
	Selections []types.Selection
	Skipped    []int
	Current    int
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{Selections: s.Selections(), Current: s.current}
	for i, st := range s.states {
		if st == types.LineSkipped {
			snap.Skipped = append(snap.Skipped, i)
		}
	}
	return snap
}

// Restore replays snap onto s. Every selection is validated as if the operator
// had made it again; the first invalid entry aborts the restore and leaves s
// unchanged.
func (s *State) Restore(ctx context.Context, snap Snapshot) error {
	next := New(s.lines, s.durations)
	for _, i := range snap.Skipped {
		if err := next.Skip(i); err != nil {
			return fmt.Errorf("restore skipped line: %w", err)
		}
	}
	for _, sel := range snap.Selections {
		if err := next.Select(ctx, sel.LineIndex, sel.ClipID, sel.TrimStart, sel.TrimEnd); err != nil {
			return fmt.Errorf("restore line %d: %w", sel.LineIndex, err)
		}
	}
	if len(next.lines) > 0 {
		if err := next.Seek(clamp(snap.Current, 0, len(next.lines)-1)); err != nil {
			return err
		}
	}
	*s = *next
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

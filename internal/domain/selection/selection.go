// Package selection tracks the operator's chosen take and trim bounds for each
// script line.
//
// State is not safe for concurrent use. Callers that expose it to more than
// one goroutine serialize access themselves (see usecase.Controller).
package selection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/forPelevin/linecut/internal/types"
)

// DurationLookup resolves a clip's media duration, usually backed by the
// transcript store.
type DurationLookup interface {
	ClipDuration(ctx context.Context, clipID string) (time.Duration, error)
}

type Direction int

const (
	Next Direction = iota
	Previous
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "next", "n", "+1":
		return Next, nil
	case "previous", "prev", "p", "-1":
		return Previous, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

type State struct {
	lines      []types.ScriptLine
	selections map[int]types.Selection
	states     []types.LineState
	current    int
	durations  DurationLookup
}

func New(lines []types.ScriptLine, durations DurationLookup) *State {
	cp := make([]types.ScriptLine, len(lines))
	copy(cp, lines)
	return &State{
		lines:      cp,
		selections: make(map[int]types.Selection, len(lines)),
		states:     make([]types.LineState, len(lines)),
		durations:  durations,
	}
}

func (s *State) Len() int                  { return len(s.lines) }
func (s *State) Current() int              { return s.current }
func (s *State) Lines() []types.ScriptLine { return append([]types.ScriptLine(nil), s.lines...) }

func (s *State) Line(i int) (types.ScriptLine, error) {
	if err := s.checkIndex(i); err != nil {
		return types.ScriptLine{}, err
	}
	return s.lines[i], nil
}

// Select records clipID trimmed to [start, end) for line i, replacing any
// previous choice.
func (s *State) Select(ctx context.Context, i int, clipID string, start, end time.Duration) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	dur, err := s.durations.ClipDuration(ctx, clipID)
	if err != nil {
		return fmt.Errorf("clip duration: %w", err)
	}
	if start < 0 || start >= end || end > dur {
		return &types.InvalidTrimRangeError{Line: i, ClipID: clipID, Start: start, End: end, Duration: dur}
	}
	s.selections[i] = types.Selection{LineIndex: i, ClipID: clipID, TrimStart: start, TrimEnd: end}
	s.states[i] = types.LineSelected
	return nil
}

// Skip clears any selection for line i and marks it visited.
func (s *State) Skip(i int) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	delete(s.selections, i)
	s.states[i] = types.LineSkipped
	return nil
}

// Navigate moves the cursor by one line, clamped to the script bounds.
func (s *State) Navigate(d Direction) int {
	if len(s.lines) == 0 {
		return 0
	}
	switch d {
	case Next:
		if s.current < len(s.lines)-1 {
			s.current++
		}
	case Previous:
		if s.current > 0 {
			s.current--
		}
	}
	return s.current
}

// Seek moves the cursor to line i.
func (s *State) Seek(i int) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.current = i
	return nil
}

func (s *State) IsComplete() bool {
	return len(s.selections) == len(s.lines)
}

// Unresolved lists line indexes without a selection, ascending.
func (s *State) Unresolved() []int {
	var out []int
	for i := range s.lines {
		if _, ok := s.selections[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func (s *State) Selection(i int) (types.Selection, bool) {
	sel, ok := s.selections[i]
	return sel, ok
}

func (s *State) LineState(i int) types.LineState {
	if i < 0 || i >= len(s.states) {
		return types.LineUnvisited
	}
	return s.states[i]
}

// Selections returns every selection ordered by line index.
func (s *State) Selections() []types.Selection {
	out := make([]types.Selection, 0, len(s.selections))
	for _, sel := range s.selections {
		out = append(out, sel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineIndex < out[j].LineIndex })
	return out
}

func (s *State) checkIndex(i int) error {
	if i < 0 || i >= len(s.lines) {
		return fmt.Errorf("%w: %d not in [0,%d)", types.ErrLineOutOfRange, i, len(s.lines))
	}
	return nil
}

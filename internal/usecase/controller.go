// Package usecase hosts the session controller: the single owner of a
// matching session. It serializes every read and mutation of selection state
// behind one mutex and runs at most one assembly job at a time.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/linecut/internal/domain/assembly"
	"github.com/forPelevin/linecut/internal/domain/matching"
	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/transcripts"
	"github.com/forPelevin/linecut/internal/types"
)

// DefaultTrimPadding widens a matched span when no explicit trim is given.
const DefaultTrimPadding = 100 * time.Millisecond

type EventSink interface {
	Publish(types.Event)
}

type Deps struct {
	Store       ports.TranscriptStore
	Renderer    ports.Renderer
	Sources     ports.SourceLocator
	Matcher     *matching.Matcher
	Logger      *slog.Logger
	Events      EventSink
	TrimPadding time.Duration
	// Now is used for timestamps; nil means time.Now.
	Now func() time.Time
}

type Controller struct {
	d         Deps
	log       *slog.Logger
	assembler *assembly.Assembler

	mu          sync.Mutex
	sessionID   string
	state       *selection.State
	byClip      map[string]types.Transcript
	transcripts []types.Transcript
	candidates  map[int][]types.Candidate

	job       *Job
	jobCancel context.CancelFunc
	jobDone   chan struct{}
}

func New(d Deps) *Controller {
	if d.Matcher == nil {
		d.Matcher = matching.New(matching.DefaultConfig())
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	c := &Controller{
		d:   d,
		log: logging.NewComponentLogger(d.Logger, "session"),
	}
	c.assembler = assembly.New(d.Renderer, d.Sources, d.Store)
	return c
}

// Open starts a new session over lines and loads every transcript the store
// lists. Clips that vanish between listing and loading are logged and left
// out. Opening replaces any previous session.
func (c *Controller) Open(ctx context.Context, lines []types.ScriptLine) (string, error) {
	if len(lines) == 0 {
		return "", errors.New("script has no lines")
	}
	for i, ln := range lines {
		if ln.Index != i {
			return "", fmt.Errorf("script line %d has index %d: lines must be indexed 0..n-1 in order", i, ln.Index)
		}
	}
	trs, err := c.loadTranscripts(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.jobRunningLocked() {
		c.mu.Unlock()
		return "", types.ErrAssemblyRunning
	}
	c.sessionID = uuid.NewString()
	c.setTranscriptsLocked(trs)
	c.state = selection.New(lines, durationFunc(c.clipDurationLocked))
	c.job = nil
	ev := c.eventLocked(types.EventSessionOpened, nil)
	id := c.sessionID
	c.mu.Unlock()

	c.log.Info("session opened", "session", id, "lines", len(lines), "clips", len(trs))
	c.emit(ev)
	return id, nil
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Transcript returns the loaded transcript of clipID.
func (c *Controller) Transcript(clipID string) (types.Transcript, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.byClip[clipID]
	return tr, ok
}

type LineView struct {
	Line       types.ScriptLine
	State      types.LineState
	Selection  *types.Selection
	Candidates []types.Candidate
	Current    bool
}

// Line returns line i with its ranked candidates. An empty candidate list
// means no clip cleared the presentation floor.
func (c *Controller) Line(i int) (LineView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return LineView{}, types.ErrNoSession
	}
	ln, err := c.state.Line(i)
	if err != nil {
		return LineView{}, err
	}
	v := LineView{
		Line:       ln,
		State:      c.state.LineState(i),
		Candidates: append([]types.Candidate(nil), c.candidatesLocked(ln)...),
		Current:    c.state.Current() == i,
	}
	if sel, ok := c.state.Selection(i); ok {
		v.Selection = &sel
	}
	return v, nil
}

type LineSummary struct {
	Line      types.ScriptLine
	State     types.LineState
	Selection *types.Selection
}

func (c *Controller) Lines() ([]LineSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil, types.ErrNoSession
	}
	lines := c.state.Lines()
	out := make([]LineSummary, 0, len(lines))
	for _, ln := range lines {
		s := LineSummary{Line: ln, State: c.state.LineState(ln.Index)}
		if sel, ok := c.state.Selection(ln.Index); ok {
			s.Selection = &sel
		}
		out = append(out, s)
	}
	return out, nil
}

// Trim is an explicit cut range within a clip.
type Trim struct {
	Start time.Duration
	End   time.Duration
}

// Select records clipID for line i. With a nil trim the range defaults to the
// clip's matched span widened by the trim padding and clamped to the clip;
// a clip that is not a candidate for the line defaults to its full length.
func (c *Controller) Select(ctx context.Context, i int, clipID string, trim *Trim) (types.Selection, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return types.Selection{}, types.ErrNoSession
	}
	ln, err := c.state.Line(i)
	if err != nil {
		c.mu.Unlock()
		return types.Selection{}, err
	}
	start, end := time.Duration(0), time.Duration(0)
	if trim != nil {
		start, end = trim.Start, trim.End
	} else {
		dur, err := c.clipDurationLocked(ctx, clipID)
		if err != nil {
			c.mu.Unlock()
			return types.Selection{}, err
		}
		start, end = c.defaultTrimLocked(ln, clipID, dur)
	}
	if err := c.state.Select(ctx, i, clipID, start, end); err != nil {
		c.mu.Unlock()
		return types.Selection{}, err
	}
	sel, _ := c.state.Selection(i)
	ev := c.eventLocked(types.EventLineSelected, &i)
	c.mu.Unlock()

	c.log.Info("line selected", "line", i, "clip", clipID, "start", sel.TrimStart, "end", sel.TrimEnd)
	c.emit(ev)
	return sel, nil
}

func (c *Controller) defaultTrimLocked(ln types.ScriptLine, clipID string, dur time.Duration) (time.Duration, time.Duration) {
	for _, cand := range c.candidatesLocked(ln) {
		if cand.ClipID != clipID {
			continue
		}
		start := max(cand.Span.Start-c.d.TrimPadding, 0)
		end := min(cand.Span.End+c.d.TrimPadding, dur)
		if start < end {
			return start, end
		}
		break
	}
	return 0, dur
}

func (c *Controller) Skip(i int) error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return types.ErrNoSession
	}
	if err := c.state.Skip(i); err != nil {
		c.mu.Unlock()
		return err
	}
	ev := c.eventLocked(types.EventLineSkipped, &i)
	c.mu.Unlock()

	c.log.Info("line skipped", "line", i)
	c.emit(ev)
	return nil
}

func (c *Controller) Navigate(d selection.Direction) (int, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return 0, types.ErrNoSession
	}
	cur := c.state.Navigate(d)
	ev := c.eventLocked(types.EventNavigated, nil)
	c.mu.Unlock()

	c.emit(ev)
	return cur, nil
}

// Seek moves the cursor to line i.
func (c *Controller) Seek(i int) error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return types.ErrNoSession
	}
	if err := c.state.Seek(i); err != nil {
		c.mu.Unlock()
		return err
	}
	ev := c.eventLocked(types.EventNavigated, nil)
	c.mu.Unlock()

	c.emit(ev)
	return nil
}

type Status struct {
	SessionID  string
	Lines      int
	Selected   int
	Skipped    int
	Unvisited  int
	Current    int
	Complete   bool
	Unresolved []int
	Clips      int
	Job        *Job
}

func (c *Controller) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return Status{}, types.ErrNoSession
	}
	st := Status{
		SessionID:  c.sessionID,
		Lines:      c.state.Len(),
		Current:    c.state.Current(),
		Complete:   c.state.IsComplete(),
		Unresolved: c.state.Unresolved(),
		Clips:      len(c.transcripts),
	}
	for i := 0; i < c.state.Len(); i++ {
		switch c.state.LineState(i) {
		case types.LineSelected:
			st.Selected++
		case types.LineSkipped:
			st.Skipped++
		default:
			st.Unvisited++
		}
	}
	if c.job != nil {
		j := *c.job
		st.Job = &j
	}
	return st, nil
}

// Refresh rescans the transcript store and drops cached candidates.
// Existing selections are kept.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.d.Store.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh transcripts: %w", err)
	}
	trs, err := c.loadTranscripts(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.setTranscriptsLocked(trs)
	var ev *types.Event
	if c.state != nil {
		e := c.eventLocked(types.EventRefreshed, nil)
		ev = &e
	}
	c.mu.Unlock()

	c.log.Info("transcripts refreshed", "clips", len(trs))
	if ev != nil {
		c.emit(*ev)
	}
	return nil
}

func (c *Controller) Snapshot() (string, selection.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return "", selection.Snapshot{}, types.ErrNoSession
	}
	return c.sessionID, c.state.Snapshot(), nil
}

// Restore replaces the open session's selections with snap and adopts
// sessionID when it is non-empty. Every selection is revalidated against the
// current transcripts; on error nothing changes.
func (c *Controller) Restore(ctx context.Context, sessionID string, snap selection.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return types.ErrNoSession
	}
	if err := c.state.Restore(ctx, snap); err != nil {
		return err
	}
	if sessionID != "" {
		c.sessionID = sessionID
	}
	return nil
}

func (c *Controller) loadTranscripts(ctx context.Context) ([]types.Transcript, error) {
	return transcripts.LoadAll(ctx, c.d.Store, func(clipID string, err error) {
		c.log.Warn("transcript unavailable, clip skipped", "clip", clipID, "error", err)
	})
}

func (c *Controller) setTranscriptsLocked(trs []types.Transcript) {
	c.transcripts = trs
	c.byClip = make(map[string]types.Transcript, len(trs))
	for _, tr := range trs {
		c.byClip[tr.ClipID] = tr
	}
	c.candidates = make(map[int][]types.Candidate)
}

func (c *Controller) candidatesLocked(ln types.ScriptLine) []types.Candidate {
	if cands, ok := c.candidates[ln.Index]; ok {
		return cands
	}
	cands := c.d.Matcher.Match(ln, c.transcripts)
	c.candidates[ln.Index] = cands
	return cands
}

func (c *Controller) clipDurationLocked(ctx context.Context, clipID string) (time.Duration, error) {
	if tr, ok := c.byClip[clipID]; ok {
		return tr.ClipDuration(), nil
	}
	tr, err := c.d.Store.Get(ctx, clipID)
	if err != nil {
		return 0, err
	}
	return tr.ClipDuration(), nil
}

func (c *Controller) eventLocked(typ string, line *int) types.Event {
	ev := types.Event{Type: typ, SessionID: c.sessionID, At: c.d.Now().UTC()}
	if c.state != nil {
		ev.Current = c.state.Current()
	}
	if line != nil {
		l := *line
		ev.Line = &l
	}
	return ev
}

func (c *Controller) emit(ev types.Event) {
	if c.d.Events != nil {
		c.d.Events.Publish(ev)
	}
}

type durationFunc func(ctx context.Context, clipID string) (time.Duration, error)

func (f durationFunc) ClipDuration(ctx context.Context, clipID string) (time.Duration, error) {
	return f(ctx, clipID)
}

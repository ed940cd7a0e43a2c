package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/linecut/internal/domain/assembly"
	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/ports/adapters/fsstore"
	"github.com/forPelevin/linecut/internal/types"
)

type fakeStore struct {
	mu        sync.Mutex
	items     map[string]types.Transcript
	listed    []string
	refreshes int
}

func (f *fakeStore) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listed != nil {
		return append([]string(nil), f.listed...), nil
	}
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (types.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.items[id]
	if !ok {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: id}
	}
	return tr, nil
}

func (f *fakeStore) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	jobs    []types.RenderJob
	err     error
	block   bool
	started chan struct{}
}

func (f *fakeRenderer) Render(ctx context.Context, job types.RenderJob) (string, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	block, started := f.block, f.started
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return job.Output, nil
}

type dirSources struct{}

func (dirSources) Locate(clipID string) (string, error) { return "/clips/" + clipID, nil }

type recordingSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recordingSink) Publish(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func testStore() *fakeStore {
	return &fakeStore{items: map[string]types.Transcript{
		"take01.mp4": {ClipID: "take01.mp4", Duration: 3, Segments: []types.Segment{
			{Start: 0.0, End: 0.6, Text: "why"},
			{Start: 0.6, End: 1.8, Text: "are you lying"},
			{Start: 1.8, End: 2.4, Text: "to me"},
		}},
		"broll.mp4": {ClipID: "broll.mp4", Duration: 8, Segments: []types.Segment{
			{Start: 0, End: 8, Text: "qqq xxx zzz"},
		}},
		"take02.mp4": {ClipID: "take02.mp4", Duration: 6, Segments: []types.Segment{
			{Start: 1.0, End: 2.0, Text: "intro chatter"},
			{Start: 2.0, End: 4.0, Text: "I never said that"},
		}},
	}}
}

func testLines() []types.ScriptLine {
	return []types.ScriptLine{
		{Index: 0, Text: "Why are you lying to me?"},
		{Index: 1, Text: "I never said that."},
	}
}

type harness struct {
	c        *Controller
	store    *fakeStore
	renderer *fakeRenderer
	events   *recordingSink
}

func newHarness(t *testing.T) harness {
	t.Helper()
	h := harness{store: testStore(), renderer: &fakeRenderer{}, events: &recordingSink{}}
	h.c = New(Deps{
		Store:       h.store,
		Renderer:    h.renderer,
		Sources:     dirSources{},
		Events:      h.events,
		TrimPadding: DefaultTrimPadding,
	})
	if _, err := h.c.Open(context.Background(), testLines()); err != nil {
		t.Fatalf("open: %v", err)
	}
	return h
}

func waitJob(t *testing.T, c *Controller) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := c.Job(); ok && j.Done() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("assembly did not finish")
	return Job{}
}

func TestLine_RankedCandidates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	v, err := h.c.Line(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Candidates) == 0 || v.Candidates[0].ClipID != "take01.mp4" {
		t.Fatalf("unexpected candidates: %+v", v.Candidates)
	}
	if v.Candidates[0].Tier != types.TierExcellent || !v.Current || v.State != types.LineUnvisited {
		t.Fatalf("unexpected view: %+v", v)
	}
	if _, err := h.c.Line(5); !errors.Is(err, types.ErrLineOutOfRange) {
		t.Fatalf("expected ErrLineOutOfRange, got %v", err)
	}
}

func TestSelect_DefaultTrimFromMatchedSpan(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	sel, err := h.c.Select(ctx, 0, "take01.mp4", nil)
	if err != nil {
		t.Fatal(err)
	}
	// span 0-2.4s widened by 0.1s, clamped at 0
	if sel.TrimStart != 0 || sel.TrimEnd != 2500*time.Millisecond {
		t.Fatalf("unexpected trim: %v-%v", sel.TrimStart, sel.TrimEnd)
	}

	sel, err = h.c.Select(ctx, 1, "take02.mp4", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.TrimStart != 1900*time.Millisecond || sel.TrimEnd != 4100*time.Millisecond {
		t.Fatalf("unexpected trim: %v-%v", sel.TrimStart, sel.TrimEnd)
	}

	// not a candidate for line 0: whole clip
	sel, err = h.c.Select(ctx, 0, "broll.mp4", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.TrimStart != 0 || sel.TrimEnd != 8*time.Second {
		t.Fatalf("unexpected trim: %v-%v", sel.TrimStart, sel.TrimEnd)
	}
}

func TestSelect_Errors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.Select(ctx, 0, "take01.mp4", &Trim{Start: 2 * time.Second, End: time.Second})
	if !errors.Is(err, types.ErrInvalidTrimRange) {
		t.Fatalf("expected ErrInvalidTrimRange, got %v", err)
	}
	if _, err := h.c.Select(ctx, 0, "missing.mp4", nil); !errors.Is(err, types.ErrClipNotFound) {
		t.Fatalf("expected ErrClipNotFound, got %v", err)
	}
	for _, typ := range h.events.kinds() {
		if typ == types.EventLineSelected {
			t.Fatalf("failed select must not publish an event")
		}
	}
	st, _ := h.c.Status()
	if st.Selected != 0 || st.Unvisited != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestStartAssembly_IncompleteCreatesNoJob(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if _, err := h.c.Select(context.Background(), 0, "take01.mp4", nil); err != nil {
		t.Fatal(err)
	}

	_, err := h.c.StartAssembly(context.Background(), assembly.Options{}, filepath.Join(t.TempDir(), "out.mp4"))
	var inc *types.IncompleteSelectionError
	if !errors.As(err, &inc) || len(inc.Unresolved) != 1 || inc.Unresolved[0] != 1 {
		t.Fatalf("expected incomplete selection for line 1, got %v", err)
	}
	if _, ok := h.c.Job(); ok {
		t.Fatalf("no job should exist")
	}
	if len(h.renderer.jobs) != 0 {
		t.Fatalf("renderer must not run")
	}
}

func TestAssemble_CompleteWritesManifest(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	// select in reverse order
	if _, err := h.c.Select(ctx, 1, "take02.mp4", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := h.c.Select(ctx, 0, "take01.mp4", nil); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "final.mp4")
	job, err := h.c.Assemble(ctx, assembly.Options{}, out)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if job.State != JobSucceeded || job.Output != out || job.Partial {
		t.Fatalf("unexpected job: %+v", job)
	}
	for i, cut := range job.Cuts {
		if cut.OutputPosition != i || cut.LineIndex != i {
			t.Fatalf("cut %d out of order: %+v", i, cut)
		}
	}

	b, err := os.ReadFile(job.Manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m types.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Cuts) != 2 || m.Cuts[0].Text != "Why are you lying to me?" || m.Cuts[1].ClipID != "take02.mp4" {
		t.Fatalf("unexpected manifest: %+v", m)
	}

	want := []string{types.EventSessionOpened, types.EventLineSelected, types.EventLineSelected, types.EventAssemblyStarted, types.EventAssemblySucceeded}
	got := h.events.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestAssemble_PartialOverride(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.c.Select(ctx, 1, "take02.mp4", nil); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Skip(0); err != nil {
		t.Fatal(err)
	}

	job, err := h.c.Assemble(ctx, assembly.Options{AllowPartial: true}, filepath.Join(t.TempDir(), "p.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if !job.Partial || len(job.Cuts) != 1 || job.Cuts[0].LineIndex != 1 || job.Cuts[0].OutputPosition != 0 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestAssembly_SingleJobAndCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	for i, clip := range []string{"take01.mp4", "take02.mp4"} {
		if _, err := h.c.Select(ctx, i, clip, nil); err != nil {
			t.Fatal(err)
		}
	}
	h.renderer.block = true
	h.renderer.started = make(chan struct{})

	out := filepath.Join(t.TempDir(), "out.mp4")
	if _, err := h.c.StartAssembly(ctx, assembly.Options{}, out); err != nil {
		t.Fatal(err)
	}
	<-h.renderer.started

	if _, err := h.c.StartAssembly(ctx, assembly.Options{}, out); !errors.Is(err, types.ErrAssemblyRunning) {
		t.Fatalf("expected ErrAssemblyRunning, got %v", err)
	}
	// selection stays usable while rendering
	if err := h.c.Skip(1); err != nil {
		t.Fatal(err)
	}
	if err := h.c.CancelAssembly(); err != nil {
		t.Fatal(err)
	}
	job := waitJob(t, h.c)
	if job.State != JobCanceled || !errors.Is(job.Err, context.Canceled) {
		t.Fatalf("unexpected job: %+v", job)
	}
	if err := h.c.CancelAssembly(); !errors.Is(err, types.ErrNoAssembly) {
		t.Fatalf("expected ErrNoAssembly, got %v", err)
	}
}

func TestAssemble_RendererFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	for i, clip := range []string{"take01.mp4", "take02.mp4"} {
		if _, err := h.c.Select(ctx, i, clip, nil); err != nil {
			t.Fatal(err)
		}
	}
	h.renderer.err = errors.New("ffmpeg concat: exit status 1")

	job, err := h.c.Assemble(ctx, assembly.Options{}, filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, types.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if job.State != JobFailed {
		t.Fatalf("unexpected job state %s", job.State)
	}
	st, _ := h.c.Status()
	if !st.Complete || st.Selected != 2 {
		t.Fatalf("failed assembly must leave selections intact: %+v", st)
	}
}

func TestRefresh_KeepsSelections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.c.Select(ctx, 0, "take01.mp4", nil); err != nil {
		t.Fatal(err)
	}

	h.store.mu.Lock()
	h.store.items["take03.mp4"] = types.Transcript{ClipID: "take03.mp4", Segments: []types.Segment{{Start: 0, End: 2, Text: "why are you lying to me"}}}
	h.store.mu.Unlock()

	if err := h.c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if h.store.refreshes != 1 {
		t.Fatalf("store not refreshed")
	}
	v, err := h.c.Line(0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Selection == nil || v.Selection.ClipID != "take01.mp4" {
		t.Fatalf("selection lost on refresh: %+v", v)
	}
	found := false
	for _, cand := range v.Candidates {
		found = found || cand.ClipID == "take03.mp4"
	}
	if !found {
		t.Fatalf("new clip not matched after refresh: %+v", v.Candidates)
	}
}

func TestOpen_SkipsVanishedClips(t *testing.T) {
	t.Parallel()
	store := testStore()
	store.listed = []string{"gone.mp4", "take01.mp4"}
	c := New(Deps{Store: store, Renderer: &fakeRenderer{}, Sources: dirSources{}})
	if _, err := c.Open(context.Background(), testLines()); err != nil {
		t.Fatal(err)
	}
	st, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Clips != 1 || st.SessionID == "" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestOpen_SkipsCorruptTranscript(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeFile := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("take01.json", `{"segments":[{"start":0,"end":0.6,"text":"why"},{"start":0.6,"end":1.8,"text":"are you lying"},{"start":1.8,"end":2.4,"text":"to me"}]}`)
	writeFile("take02.json", `{"segments":[{"start":0,"end":1,"te`)

	c := New(Deps{Store: fsstore.New(dir, nil), Renderer: &fakeRenderer{}, Sources: dirSources{}})
	if _, err := c.Open(ctx, testLines()); err != nil {
		t.Fatalf("open with one corrupt transcript: %v", err)
	}
	st, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Clips != 1 {
		t.Fatalf("clips = %d, want 1", st.Clips)
	}
	v, err := c.Line(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Candidates) != 1 || v.Candidates[0].ClipID != "take01" {
		t.Fatalf("candidates = %+v", v.Candidates)
	}

	writeFile("take02.json", `{"segments":[{"start":0,"end":1,"text":"I never said that"}]}`)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st, _ := c.Status(); st.Clips != 2 {
		t.Fatalf("clips after repair = %d, want 2", st.Clips)
	}
}

func TestNoSession(t *testing.T) {
	t.Parallel()
	c := New(Deps{Store: testStore()})
	if _, err := c.Line(0); !errors.Is(err, types.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := c.Navigate(selection.Next); !errors.Is(err, types.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := c.Open(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty script")
	}
}

func TestSnapshotRestore(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.c.Select(ctx, 1, "take02.mp4", &Trim{Start: time.Second, End: 3 * time.Second}); err != nil {
		t.Fatal(err)
	}
	id, snap, err := h.c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	other := newHarness(t)
	if err := other.c.Restore(ctx, id, snap); err != nil {
		t.Fatal(err)
	}
	if other.c.SessionID() != id {
		t.Fatalf("session id not adopted")
	}
	v, _ := other.c.Line(1)
	if v.Selection == nil || v.Selection.TrimEnd != 3*time.Second {
		t.Fatalf("selection not restored: %+v", v)
	}
}

func TestManifestPath(t *testing.T) {
	t.Parallel()
	if got := ManifestPath(filepath.Join("out", "final.mp4")); got != filepath.Join("out", "final.manifest.json") {
		t.Fatalf("ManifestPath = %q", got)
	}
}

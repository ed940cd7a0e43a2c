package assembly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/types"
)

type fakeDurations map[string]time.Duration

func (f fakeDurations) ClipDuration(_ context.Context, clipID string) (time.Duration, error) {
	d, ok := f[clipID]
	if !ok {
		return 0, &types.ClipNotFoundError{ClipID: clipID}
	}
	return d, nil
}

type fakeRenderer struct {
	jobs []types.RenderJob
	err  error
}

func (f *fakeRenderer) Render(ctx context.Context, job types.RenderJob) (string, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return "", f.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return job.Output, nil
}

type dirSources struct{}

func (dirSources) Locate(clipID string) (string, error) { return "/clips/" + clipID, nil }

type fakeTranscripts map[string]types.Transcript

func (f fakeTranscripts) Get(_ context.Context, clipID string) (types.Transcript, error) {
	tr, ok := f[clipID]
	if !ok {
		return types.Transcript{}, &types.ClipNotFoundError{ClipID: clipID}
	}
	return tr, nil
}

func newState(t *testing.T, n int) *selection.State {
	t.Helper()
	lines := make([]types.ScriptLine, n)
	for i := range lines {
		lines[i] = types.ScriptLine{Index: i, Text: fmt.Sprintf("line %d", i)}
	}
	return selection.New(lines, fakeDurations{"a.mp4": 10 * time.Second, "b.mp4": 10 * time.Second})
}

func mustSelect(t *testing.T, st *selection.State, line int, clip string, start, end time.Duration) {
	t.Helper()
	if err := st.Select(context.Background(), line, clip, start, end); err != nil {
		t.Fatalf("select line %d: %v", line, err)
	}
}

func TestPlan_ScriptOrderRegardlessOfSelectionOrder(t *testing.T) {
	st := newState(t, 3)
	mustSelect(t, st, 2, "b.mp4", 5*time.Second, 6*time.Second)
	mustSelect(t, st, 0, "a.mp4", 0, time.Second)
	mustSelect(t, st, 1, "a.mp4", 3*time.Second, 4*time.Second)

	cuts, err := Plan(st, Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(cuts) != 3 {
		t.Fatalf("expected 3 cuts, got %d", len(cuts))
	}
	for i, c := range cuts {
		if c.OutputPosition != i || c.LineIndex != i {
			t.Fatalf("cut %d: position=%d line=%d", i, c.OutputPosition, c.LineIndex)
		}
	}
	// the same clip may appear twice with different ranges
	if cuts[0].ClipID != "a.mp4" || cuts[1].ClipID != "a.mp4" || cuts[1].Start != 3*time.Second {
		t.Fatalf("unexpected cuts: %+v", cuts)
	}
}

func TestPlan_IncompleteSelection(t *testing.T) {
	st := newState(t, 3)
	mustSelect(t, st, 0, "a.mp4", 0, time.Second)
	if err := st.Skip(2); err != nil {
		t.Fatal(err)
	}

	cuts, err := Plan(st, Options{})
	if !errors.Is(err, types.ErrIncompleteSelection) {
		t.Fatalf("expected ErrIncompleteSelection, got %v", err)
	}
	if len(cuts) != 0 {
		t.Fatalf("expected zero cuts, got %d", len(cuts))
	}
	var inc *types.IncompleteSelectionError
	if !errors.As(err, &inc) || fmt.Sprint(inc.Unresolved) != "[1 2]" {
		t.Fatalf("unexpected unresolved lines: %v", err)
	}
}

func TestPlan_PartialOmitsUnresolved(t *testing.T) {
	st := newState(t, 4)
	mustSelect(t, st, 3, "b.mp4", 0, time.Second)
	mustSelect(t, st, 1, "a.mp4", 0, time.Second)

	cuts, err := Plan(st, Options{AllowPartial: true})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(cuts) != 2 || cuts[0].LineIndex != 1 || cuts[1].LineIndex != 3 {
		t.Fatalf("unexpected cuts: %+v", cuts)
	}
	if cuts[0].OutputPosition != 0 || cuts[1].OutputPosition != 1 {
		t.Fatalf("positions must be contiguous: %+v", cuts)
	}
}

func TestAssemble_RendersResolvedJob(t *testing.T) {
	st := newState(t, 2)
	mustSelect(t, st, 1, "b.mp4", 2*time.Second, 3*time.Second)
	mustSelect(t, st, 0, "a.mp4", 0, time.Second)

	r := &fakeRenderer{}
	res, err := New(r, dirSources{}, nil).Assemble(context.Background(), st, Options{}, "/out/final.mp4")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if res.Output != "/out/final.mp4" || len(res.Cuts) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(r.jobs) != 1 {
		t.Fatalf("expected one render call, got %d", len(r.jobs))
	}
	job := r.jobs[0]
	if job.Cuts[0].SourcePath != "/clips/a.mp4" || job.Cuts[1].SourcePath != "/clips/b.mp4" {
		t.Fatalf("unexpected sources: %+v", job.Cuts)
	}
	if job.Cuts[0].CaptionsASS != "" {
		t.Fatalf("captions must be off by default")
	}
	if job.Music != nil {
		t.Fatalf("music must be off by default")
	}
}

func TestAssemble_PassesMusicBed(t *testing.T) {
	st := newState(t, 1)
	mustSelect(t, st, 0, "a.mp4", 0, 2*time.Second)
	bed := &types.MusicBed{Path: "/music/bed.mp3", Volume: 0.15, DialogueVolume: 1, Loop: true}

	r := &fakeRenderer{}
	if _, err := New(r, dirSources{}, nil).Assemble(context.Background(), st, Options{Music: bed}, "out.mp4"); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if got := r.jobs[0].Music; got == nil || *got != *bed {
		t.Fatalf("music bed = %+v, want %+v", got, bed)
	}
}

func TestAssemble_Captions(t *testing.T) {
	st := newState(t, 1)
	mustSelect(t, st, 0, "a.mp4", 0, 2*time.Second)
	trs := fakeTranscripts{"a.mp4": {Segments: []types.Segment{{Start: 0, End: 1, Text: "line zero"}}}}

	r := &fakeRenderer{}
	if _, err := New(r, dirSources{}, trs).Assemble(context.Background(), st, Options{Captions: true}, "out.mp4"); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(r.jobs[0].Cuts[0].CaptionsASS, "line zero") {
		t.Fatalf("expected caption text, got:\n%s", r.jobs[0].Cuts[0].CaptionsASS)
	}
}

func TestAssemble_RendererFailure(t *testing.T) {
	st := newState(t, 1)
	mustSelect(t, st, 0, "a.mp4", 0, time.Second)

	r := &fakeRenderer{err: errors.New("ffmpeg: exit status 1: Invalid data found")}
	_, err := New(r, dirSources{}, nil).Assemble(context.Background(), st, Options{}, "out.mp4")
	if !errors.Is(err, types.ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("renderer message lost: %v", err)
	}
	if _, ok := st.Selection(0); !ok {
		t.Fatalf("failed render must not touch selections")
	}
}

func TestAssemble_IncompleteDoesNotRender(t *testing.T) {
	st := newState(t, 2)
	mustSelect(t, st, 0, "a.mp4", 0, time.Second)

	r := &fakeRenderer{}
	_, err := New(r, dirSources{}, nil).Assemble(context.Background(), st, Options{}, "out.mp4")
	if !errors.Is(err, types.ErrIncompleteSelection) {
		t.Fatalf("expected ErrIncompleteSelection, got %v", err)
	}
	if len(r.jobs) != 0 {
		t.Fatalf("renderer must not run for incomplete selection")
	}
}

func TestAssemble_Canceled(t *testing.T) {
	st := newState(t, 1)
	mustSelect(t, st, 0, "a.mp4", 0, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeRenderer{}, dirSources{}, nil).Assemble(ctx, st, Options{}, "out.mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRender_NothingSelected(t *testing.T) {
	st := newState(t, 2)
	if _, err := New(&fakeRenderer{}, dirSources{}, nil).Assemble(context.Background(), st, Options{AllowPartial: true}, "out.mp4"); err == nil {
		t.Fatalf("expected error for empty cut list")
	}
}

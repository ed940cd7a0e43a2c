// Package assembly turns resolved selections into an ordered cut list and
// hands it to the renderer.
//
// Script order defines the output order: cuts are emitted by ascending line
// index no matter when each selection was made. The assembler never mutates
// selection state, so an aborted render leaves the session as it was.
package assembly

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/domain/subtitles"
	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/types"
)

type Options struct {
	// AllowPartial builds from whatever is selected; unresolved lines are
	// left out of the output.
	AllowPartial bool
	// Captions burns the transcript words of each cut into the video.
	Captions bool
	// Music, when set, is mixed under the assembled dialogue.
	Music *types.MusicBed
}

// Plan returns one cut per selected line in script order. Without
// AllowPartial every line must be selected; otherwise it fails with an
// *types.IncompleteSelectionError and returns no cuts.
func Plan(st *selection.State, opts Options) ([]types.CutInstruction, error) {
	if !opts.AllowPartial && !st.IsComplete() {
		return nil, &types.IncompleteSelectionError{Unresolved: st.Unresolved()}
	}
	sels := st.Selections()
	cuts := make([]types.CutInstruction, 0, len(sels))
	for pos, sel := range sels {
		cuts = append(cuts, types.CutInstruction{
			ClipID:         sel.ClipID,
			Start:          sel.TrimStart,
			End:            sel.TrimEnd,
			OutputPosition: pos,
			LineIndex:      sel.LineIndex,
		})
	}
	return cuts, nil
}

// TranscriptSource supplies word timings for captions.
type TranscriptSource interface {
	Get(ctx context.Context, clipID string) (types.Transcript, error)
}

type Assembler struct {
	renderer    ports.Renderer
	sources     ports.SourceLocator
	transcripts TranscriptSource
}

func New(renderer ports.Renderer, sources ports.SourceLocator, transcripts TranscriptSource) *Assembler {
	return &Assembler{renderer: renderer, sources: sources, transcripts: transcripts}
}

type Result struct {
	Output string
	Cuts   []types.CutInstruction
}

// Assemble plans st and renders the result into output.
func (a *Assembler) Assemble(ctx context.Context, st *selection.State, opts Options, output string) (Result, error) {
	cuts, err := Plan(st, opts)
	if err != nil {
		return Result{}, err
	}
	return a.Render(ctx, cuts, opts, output)
}

// Render resolves sources for an already planned cut list and runs the
// renderer. Renderer failures come back as *types.ExternalServiceError
// carrying the renderer's message; nothing is retried.
func (a *Assembler) Render(ctx context.Context, cuts []types.CutInstruction, opts Options, output string) (Result, error) {
	if len(cuts) == 0 {
		return Result{}, errors.New("nothing to assemble: no lines selected")
	}
	job := types.RenderJob{Output: output, Cuts: make([]types.RenderCut, 0, len(cuts)), Music: opts.Music}
	for _, c := range cuts {
		src, err := a.sources.Locate(c.ClipID)
		if err != nil {
			return Result{}, fmt.Errorf("locate source for line %d: %w", c.LineIndex, err)
		}
		rc := types.RenderCut{CutInstruction: c, SourcePath: src}
		if opts.Captions && a.transcripts != nil {
			tr, err := a.transcripts.Get(ctx, c.ClipID)
			if err != nil {
				return Result{}, fmt.Errorf("captions for line %d: %w", c.LineIndex, err)
			}
			rc.CaptionsASS = subtitles.RenderCaptionsASS(tr, c.Start, c.End)
		}
		job.Cuts = append(job.Cuts, rc)
	}

	out, err := a.renderer.Render(ctx, job)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &types.ExternalServiceError{Op: "render", Err: err}
	}
	return Result{Output: out, Cuts: cuts}, nil
}

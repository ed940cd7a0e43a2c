package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/forPelevin/linecut/internal/domain/assembly"
	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

type AutoOptions struct {
	Output   string
	Captions bool
	Music    *types.MusicBed
	// DryRun picks clips but does not render.
	DryRun bool
	Logger *slog.Logger
}

type AutoPick struct {
	Line      types.ScriptLine
	Candidate *types.Candidate
	Selection *types.Selection
}

type AutoResult struct {
	Picks []AutoPick
	Job   *usecase.Job
}

// Skipped lists lines that had no candidate.
func (r AutoResult) Skipped() []int {
	var out []int
	for _, p := range r.Picks {
		if p.Selection == nil {
			out = append(out, p.Line.Index)
		}
	}
	return out
}

// Auto selects the best candidate for every line of an open session, skips
// lines without one, and assembles what was picked with the partial override.
func Auto(ctx context.Context, c *usecase.Controller, opts AutoOptions) (AutoResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	st, err := c.Status()
	if err != nil {
		return AutoResult{}, err
	}

	var res AutoResult
	picked := 0
	for i := 0; i < st.Lines; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		v, err := c.Line(i)
		if err != nil {
			return res, err
		}
		pick := AutoPick{Line: v.Line}
		if len(v.Candidates) == 0 {
			if err := c.Skip(i); err != nil {
				return res, err
			}
			log.Warn("no candidate, line skipped", "line", i, "text", v.Line.Text)
			res.Picks = append(res.Picks, pick)
			continue
		}
		best := v.Candidates[0]
		sel, err := c.Select(ctx, i, best.ClipID, nil)
		if err != nil {
			return res, fmt.Errorf("select line %d: %w", i, err)
		}
		pick.Candidate, pick.Selection = &best, &sel
		res.Picks = append(res.Picks, pick)
		picked++
		log.Info("line matched", "line", i, "clip", best.ClipID, "score", best.Score, "tier", best.Tier)
	}

	if picked == 0 {
		return res, errors.New("no line has a matching clip")
	}
	if opts.DryRun {
		return res, nil
	}
	job, err := c.Assemble(ctx, assembly.Options{AllowPartial: true, Captions: opts.Captions, Music: opts.Music}, opts.Output)
	if job.ID != "" {
		res.Job = &job
	}
	return res, err
}

package api

import (
	"time"

	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

type candidateDTO struct {
	ClipID   string     `json:"clip_id"`
	Score    float64    `json:"score"`
	Tier     types.Tier `json:"tier"`
	StartSec float64    `json:"start_sec"`
	EndSec   float64    `json:"end_sec"`
	Text     string     `json:"text"`
}

type selectionDTO struct {
	ClipID       string  `json:"clip_id"`
	TrimStartSec float64 `json:"trim_start_sec"`
	TrimEndSec   float64 `json:"trim_end_sec"`
}

type lineDTO struct {
	Index      int             `json:"index"`
	Text       string          `json:"text"`
	State      types.LineState `json:"state"`
	Current    bool            `json:"current"`
	Selection  *selectionDTO   `json:"selection,omitempty"`
	Candidates *[]candidateDTO `json:"candidates,omitempty"`
}

type jobDTO struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	Output     string     `json:"output"`
	Partial    bool       `json:"partial"`
	Cuts       int        `json:"cuts"`
	Manifest   string     `json:"manifest,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type statusDTO struct {
	SessionID  string  `json:"session_id"`
	Lines      int     `json:"lines"`
	Selected   int     `json:"selected"`
	Skipped    int     `json:"skipped"`
	Unvisited  int     `json:"unvisited"`
	Current    int     `json:"current"`
	Complete   bool    `json:"complete"`
	Unresolved []int   `json:"unresolved"`
	Clips      int     `json:"clips"`
	Job        *jobDTO `json:"job,omitempty"`
}

func toSelection(s *types.Selection) *selectionDTO {
	if s == nil {
		return nil
	}
	return &selectionDTO{
		ClipID:       s.ClipID,
		TrimStartSec: s.TrimStart.Seconds(),
		TrimEndSec:   s.TrimEnd.Seconds(),
	}
}

func toCandidates(cands []types.Candidate) []candidateDTO {
	out := make([]candidateDTO, 0, len(cands))
	for _, c := range cands {
		out = append(out, candidateDTO{
			ClipID:   c.ClipID,
			Score:    c.Score,
			Tier:     c.Tier,
			StartSec: c.Span.Start.Seconds(),
			EndSec:   c.Span.End.Seconds(),
			Text:     c.Text,
		})
	}
	return out
}

func toLine(v usecase.LineView) lineDTO {
	cands := toCandidates(v.Candidates)
	return lineDTO{
		Index:      v.Line.Index,
		Text:       v.Line.Text,
		State:      v.State,
		Current:    v.Current,
		Selection:  toSelection(v.Selection),
		Candidates: &cands,
	}
}

func toLineSummary(s usecase.LineSummary, current int) lineDTO {
	return lineDTO{
		Index:     s.Line.Index,
		Text:      s.Line.Text,
		State:     s.State,
		Current:   s.Line.Index == current,
		Selection: toSelection(s.Selection),
	}
}

func toJob(j usecase.Job) *jobDTO {
	out := &jobDTO{
		ID:        j.ID,
		State:     string(j.State),
		Output:    j.Output,
		Partial:   j.Partial,
		Cuts:      len(j.Cuts),
		Manifest:  j.Manifest,
		StartedAt: j.StartedAt,
	}
	if j.Err != nil {
		out.Error = j.Err.Error()
	}
	if !j.FinishedAt.IsZero() {
		t := j.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

func toStatus(st usecase.Status) statusDTO {
	out := statusDTO{
		SessionID:  st.SessionID,
		Lines:      st.Lines,
		Selected:   st.Selected,
		Skipped:    st.Skipped,
		Unvisited:  st.Unvisited,
		Current:    st.Current,
		Complete:   st.Complete,
		Unresolved: append([]int{}, st.Unresolved...),
		Clips:      st.Clips,
	}
	if st.Job != nil {
		out.Job = toJob(*st.Job)
	}
	return out
}

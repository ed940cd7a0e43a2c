package types

import (
	"math"
	"strings"
	"time"
)

type ScriptLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type Transcript struct {
	ClipID   string    `json:"clip_id,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Text     string    `json:"text,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// FullText joins segment texts in time order. Transcripts that only carry a
// flat text body fall back to it.
func (t Transcript) FullText() string {
	if len(t.Segments) == 0 {
		return strings.TrimSpace(t.Text)
	}
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

// ClipDuration prefers the recorded media duration and falls back to the end
// of the last segment.
func (t Transcript) ClipDuration() time.Duration {
	if t.Duration > 0 {
		return Seconds(t.Duration)
	}
	if n := len(t.Segments); n > 0 {
		return Seconds(t.Segments[n-1].End)
	}
	return 0
}

type Span struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

func (s Span) Duration() time.Duration { return s.End - s.Start }

type Tier int

const (
	TierNone Tier = iota
	TierFair
	TierGood
	TierExcellent
)

func (t Tier) String() string {
	switch t {
	case TierExcellent:
		return "excellent"
	case TierGood:
		return "good"
	case TierFair:
		return "fair"
	default:
		return "none"
	}
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

type Candidate struct {
	LineIndex int
	ClipID    string
	Score     float64
	Span      Span
	Tier      Tier
	Text      string
}

type Selection struct {
	LineIndex int
	ClipID    string
	TrimStart time.Duration
	TrimEnd   time.Duration
}

type LineState int

const (
	LineUnvisited LineState = iota
	LineSkipped
	LineSelected
)

func (s LineState) String() string {
	switch s {
	case LineSkipped:
		return "skipped"
	case LineSelected:
		return "selected"
	default:
		return "unvisited"
	}
}

func (s LineState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type CutInstruction struct {
	ClipID         string
	Start          time.Duration
	End            time.Duration
	OutputPosition int

	// LineIndex is the script line the cut was planned from.
	LineIndex int
}

type RenderCut struct {
	CutInstruction
	SourcePath  string
	CaptionsASS string
}

// MusicBed is a background track mixed under the dialogue of a rendered
// output. The dialogue stream decides the output length.
type MusicBed struct {
	Path           string
	Volume         float64
	DialogueVolume float64
	FadeIn         time.Duration
	FadeOut        time.Duration
	// Loop repeats the track until the dialogue ends.
	Loop bool
}

type RenderJob struct {
	Cuts   []RenderCut
	Output string
	// Music is optional.
	Music *MusicBed
}

type Manifest struct {
	SessionID string        `json:"session_id"`
	Output    string        `json:"output"`
	Partial   bool          `json:"partial"`
	Cuts      []ManifestCut `json:"cuts"`
}

type ManifestCut struct {
	Position int     `json:"position"`
	Line     int     `json:"line"`
	ClipID   string  `json:"clip_id"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Text     string  `json:"text"`
}

func Seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}

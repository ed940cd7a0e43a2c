package matching

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/linecut/internal/types"
)

// Default thresholds. They are empirical and have no derivation beyond "worked
// on real takes", so they stay overridable through Config.
const (
	DefaultExcellentMin    = 0.8
	DefaultGoodMin         = 0.6
	DefaultFairMin         = 0.5
	DefaultLengthTolerance = 0.5
)

type Config struct {
	// ExcellentMin and GoodMin only affect the reported tier.
	ExcellentMin float64
	GoodMin      float64
	// FairMin is the presentation floor: clips scoring below it are dropped.
	FairMin float64
	// LengthTolerance bounds window length to len(line)*(1±LengthTolerance).
	LengthTolerance float64
	// Workers caps per-clip parallelism; <= 0 means GOMAXPROCS.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		ExcellentMin:    DefaultExcellentMin,
		GoodMin:         DefaultGoodMin,
		FairMin:         DefaultFairMin,
		LengthTolerance: DefaultLengthTolerance,
	}
}

func (c Config) Validate() error {
	if c.FairMin < 0 || c.ExcellentMin > 1 {
		return errors.New("thresholds must be within [0,1]")
	}
	if c.FairMin > c.GoodMin || c.GoodMin > c.ExcellentMin {
		return fmt.Errorf("thresholds must satisfy fair <= good <= excellent (got %.2f, %.2f, %.2f)", c.FairMin, c.GoodMin, c.ExcellentMin)
	}
	if c.LengthTolerance < 0 {
		return fmt.Errorf("length tolerance must be >= 0")
	}
	return nil
}

func (c Config) Tier(score float64) types.Tier {
	switch {
	case score >= c.ExcellentMin:
		return types.TierExcellent
	case score >= c.GoodMin:
		return types.TierGood
	case score >= c.FairMin:
		return types.TierFair
	default:
		return types.TierNone
	}
}

type Matcher struct {
	cfg Config
}

// New returns a Matcher. A zero Config selects DefaultConfig.
func New(cfg Config) *Matcher {
	workers := cfg.Workers
	cfg.Workers = 0
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	cfg.Workers = workers
	return &Matcher{cfg: cfg}
}

func (m *Matcher) Config() Config { return m.cfg }

// Match scores line against every transcript and returns the clips clearing
// FairMin, best first. Equal scores are ordered by clip ID so repeated calls
// return identical lists. An empty result means "no matches", not a failure.
func (m *Matcher) Match(line types.ScriptLine, transcripts []types.Transcript) []types.Candidate {
	target := []rune(Normalize(line.Text))
	if len(target) == 0 || len(transcripts) == 0 {
		return nil
	}

	results := make([]*types.Candidate, len(transcripts))
	var g errgroup.Group
	g.SetLimit(m.cfg.Workers)
	for i := range transcripts {
		g.Go(func() error {
			results[i] = m.scoreClip(line.Index, target, transcripts[i])
			return nil
		})
	}
	_ = g.Wait()

	out := make([]types.Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}
	sortCandidates(out)
	return out
}

// MatchAll returns one candidate list per line, indexed like lines.
func (m *Matcher) MatchAll(lines []types.ScriptLine, transcripts []types.Transcript) [][]types.Candidate {
	out := make([][]types.Candidate, len(lines))
	for i, ln := range lines {
		out[i] = m.Match(ln, transcripts)
	}
	return out
}

func sortCandidates(c []types.Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		if c[i].ClipID != c[j].ClipID {
			return c[i].ClipID < c[j].ClipID
		}
		return c[i].Span.Start < c[j].Span.Start
	})
}

type normSegment struct {
	text  []rune
	raw   string
	start float64
	end   float64
}

func prepareSegments(tr types.Transcript) []normSegment {
	out := make([]normSegment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		n := Normalize(s.Text)
		if n == "" {
			continue
		}
		out = append(out, normSegment{text: []rune(n), raw: strings.TrimSpace(s.Text), start: s.Start, end: s.End})
	}
	return out
}

// scoreClip slides segment windows over the transcript and keeps the best one.
// A window is compared when its length is within tolerance of the line, when
// it is a single segment (lines shorter than any segment), or when it is the
// longest window left for a start position that can never reach the lower
// bound.
func (m *Matcher) scoreClip(lineIndex int, target []rune, tr types.Transcript) *types.Candidate {
	segs := prepareSegments(tr)
	if len(segs) == 0 {
		return nil
	}

	n := float64(len(target))
	lo := n * (1 - m.cfg.LengthTolerance)
	hi := n * (1 + m.cfg.LengthTolerance)

	best := -1.0
	bestI, bestJ := 0, 0
	window := make([]rune, 0, int(hi)+16)
	for i := range segs {
		window = window[:0]
		for j := i; j < len(segs); j++ {
			if j > i {
				window = append(window, ' ')
			}
			window = append(window, segs[j].text...)

			size := float64(len(window))
			inRange := size >= lo && size <= hi
			tail := j == len(segs)-1 && size < lo
			if inRange || j == i || tail {
				if r := Ratio(target, window); r > best {
					best, bestI, bestJ = r, i, j
				}
			}
			if size > hi {
				break
			}
		}
	}

	if best < m.cfg.FairMin {
		return nil
	}

	parts := make([]string, 0, bestJ-bestI+1)
	for k := bestI; k <= bestJ; k++ {
		parts = append(parts, segs[k].raw)
	}
	return &types.Candidate{
		LineIndex: lineIndex,
		ClipID:    tr.ClipID,
		Score:     best,
		Span: types.Span{
			Start: types.Seconds(segs[bestI].start),
			End:   types.Seconds(segs[bestJ].end),
		},
		Tier: m.cfg.Tier(best),
		Text: strings.Join(parts, " "),
	}
}

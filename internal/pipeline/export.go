package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

// ReportName is the matching report written next to exported clips.
const ReportName = "_matching_report.txt"

const (
	reportRule      = 70
	reportFullChars = 200
)

type ExportOptions struct {
	// Dir receives the numbered copies and the report. It is created.
	Dir    string
	Logger *slog.Logger
}

// ExportMatch is the best candidate of one script line.
type ExportMatch struct {
	Line      types.ScriptLine
	Candidate types.Candidate
}

// ExportedClip is a clip copied into the export directory under a numbered
// name, for the first line it matched.
type ExportedClip struct {
	ExportMatch
	Number   int
	Source   string
	File     string
	FullText string
}

type ExportResult struct {
	Lines       int
	Transcripts int
	// Matches holds every matched line in script order, repeats included.
	Matches  []ExportMatch
	Exported []ExportedClip
	Report   string
}

// Export copies the best clip of every line into opts.Dir in script order as
// NN_<name>. A clip that wins several lines is copied once, for its first
// line. A plain-text matching report is written alongside.
func Export(ctx context.Context, c *usecase.Controller, sources ports.SourceLocator, opts ExportOptions) (ExportResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Dir == "" {
		return ExportResult{}, errors.New("export: directory required")
	}
	st, err := c.Status()
	if err != nil {
		return ExportResult{}, err
	}
	res := ExportResult{Lines: st.Lines, Transcripts: st.Clips}
	for i := 0; i < st.Lines; i++ {
		v, err := c.Line(i)
		if err != nil {
			return res, err
		}
		if len(v.Candidates) == 0 {
			log.Warn("no candidate, line not exported", "line", i, "text", v.Line.Text)
			continue
		}
		res.Matches = append(res.Matches, ExportMatch{Line: v.Line, Candidate: v.Candidates[0]})
	}
	if len(res.Matches) == 0 {
		return res, errors.New("no line has a matching clip")
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return res, fmt.Errorf("create export dir: %w", err)
	}
	seen := make(map[string]bool, len(res.Matches))
	for _, m := range res.Matches {
		if seen[m.Candidate.ClipID] {
			continue
		}
		seen[m.Candidate.ClipID] = true
		if err := ctx.Err(); err != nil {
			return res, err
		}
		src, err := sources.Locate(m.Candidate.ClipID)
		if err != nil {
			return res, err
		}
		n := len(res.Exported) + 1
		dst := filepath.Join(opts.Dir, fmt.Sprintf("%02d_%s", n, filepath.Base(src)))
		if err := copyClip(src, dst); err != nil {
			return res, fmt.Errorf("export %s: %w", m.Candidate.ClipID, err)
		}
		tr, _ := c.Transcript(m.Candidate.ClipID)
		res.Exported = append(res.Exported, ExportedClip{
			ExportMatch: m,
			Number:      n,
			Source:      src,
			File:        dst,
			FullText:    tr.FullText(),
		})
		log.Info("clip exported", "line", m.Line.Index, "clip", m.Candidate.ClipID, "file", filepath.Base(dst), "score", m.Candidate.Score)
	}

	res.Report = filepath.Join(opts.Dir, ReportName)
	if err := os.WriteFile(res.Report, []byte(MatchingReport(res)), 0o644); err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	return res, nil
}

// MatchingReport renders the export as plain text. Line numbers are 1-based.
func MatchingReport(res ExportResult) string {
	rule := strings.Repeat("=", reportRule)
	var b strings.Builder
	b.WriteString("VIDEO MATCHING REPORT - LINE BY LINE\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Total script lines: %d\n", res.Lines)
	fmt.Fprintf(&b, "Total videos processed: %d\n", res.Transcripts)
	fmt.Fprintf(&b, "Unique videos matched: %d\n", len(res.Exported))
	fmt.Fprintf(&b, "Total line matches: %d\n\n", len(res.Matches))
	b.WriteString(rule + "\n\n")

	for _, e := range res.Exported {
		fmt.Fprintf(&b, "VIDEO %02d: %s\n", e.Number, e.Candidate.ClipID)
		fmt.Fprintf(&b, "  Script Line %d: %s\n", e.Line.Index+1, e.Line.Text)
		fmt.Fprintf(&b, "  Confidence: %s\n", percent(e.Candidate.Score))
		fmt.Fprintf(&b, "  Matched Text: %s\n", e.Candidate.Text)
		fmt.Fprintf(&b, "  Full Transcription: %s...\n", headRunes(e.FullText, reportFullChars))
		b.WriteString("\n" + strings.Repeat("-", reportRule) + "\n\n")
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("ALL LINE MATCHES (including duplicates):\n")
	b.WriteString(rule + "\n\n")
	for _, m := range res.Matches {
		fmt.Fprintf(&b, "Line %d: %s\n", m.Line.Index+1, m.Line.Text)
		fmt.Fprintf(&b, "  → %s (%s)\n\n", m.Candidate.ClipID, percent(m.Candidate.Score))
	}
	return b.String()
}

func percent(score float64) string {
	return fmt.Sprintf("%.2f%%", score*100)
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// copyClip copies src to dst and keeps its mode and modification time.
func copyClip(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/forPelevin/linecut/internal/types"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	bulletStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// bullets renders a status tree:
//
//	├ first
//	└ last
func bullets(lines []string) string {
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		b := "├"
		if i == len(lines)-1 {
			b = "└"
		}
		out = append(out, bulletStyle.Render(b)+textStyle.Render(l))
	}
	return strings.Join(out, "\n") + "\n"
}

func tierIcon(t types.Tier) string {
	switch t {
	case types.TierExcellent:
		return "●●●"
	case types.TierGood:
		return "●● "
	case types.TierFair:
		return "●  "
	default:
		return "   "
	}
}

func fmtSec(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func fmtRange(start, end time.Duration) string {
	return fmtSec(start) + "–" + fmtSec(end)
}

func candidateRows(cands []types.Candidate, top int) [][]string {
	if top > 0 && len(cands) > top {
		cands = cands[:top]
	}
	rows := make([][]string, 0, len(cands))
	for i, c := range cands {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			c.ClipID,
			fmt.Sprintf("%.3f", c.Score),
			tierIcon(c.Tier) + " " + c.Tier.String(),
			fmtRange(c.Span.Start, c.Span.End),
			c.Text,
		})
	}
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

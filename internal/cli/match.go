package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMatchCommand(cc *commandContext) *cobra.Command {
	var (
		script string
		line   int
		top    int
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "List ranked clip candidates for script lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cc.stack(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := openSession(cmd.Context(), st, sessionOptions{script: script})
			if err != nil {
				return err
			}
			if line >= len(s.lines) {
				return fmt.Errorf("line %d out of range: script has %d lines", line, len(s.lines))
			}
			out := cmd.OutOrStdout()
			for _, ln := range s.lines {
				if line >= 0 && ln.Index != line {
					continue
				}
				v, err := s.ctrl.Line(ln.Index)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Line %d: %s", ln.Index, ln.Text)))
				if len(v.Candidates) == 0 {
					fmt.Fprint(out, bullets([]string{errorStyle.Render("no matching clips")}))
					continue
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Clip", "Score", "Tier", "Span", "Matched"},
					candidateRows(v.Candidates, top),
					[]columnAlignment{alignRight, alignLeft, alignRight},
				))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script file, one line per take")
	cmd.Flags().IntVar(&line, "line", -1, "Only show this line index")
	cmd.Flags().IntVar(&top, "top", 5, "Candidates to show per line (0 = all)")
	return cmd
}

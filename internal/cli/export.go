package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/pipeline"
)

func newExportCommand(cc *commandContext) *cobra.Command {
	var (
		script string
		dir    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy the best clip of each line into a folder in script order",
		Long: "Copies the best-matching clip of every script line into a folder as NN_<clip>,\n" +
			"numbered in script order. A clip that wins several lines is copied once.\n" +
			"A plain-text " + pipeline.ReportName + " is written alongside.",
		Args: cobra.NoArgs,
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
			if dir == "" {
				dir = filepath.Join(st.Config.Paths.OutputDir, "ordered")
			}
			res, err := pipeline.Export(cmd.Context(), s.ctrl, st.Clips, pipeline.ExportOptions{
				Dir:    dir,
				Logger: logging.NewComponentLogger(st.Log, "export"),
			})
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Exported))
			for _, e := range res.Exported {
				rows = append(rows, []string{
					fmt.Sprintf("%02d", e.Number),
					filepath.Base(e.File),
					fmt.Sprintf("%d", e.Line.Index),
					fmt.Sprintf("%.2f", e.Candidate.Score),
					e.Candidate.Tier.String(),
					truncate(e.Line.Text, 50),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "File", "Line", "Score", "Tier", "Text"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			status := []string{
				fmt.Sprintf("%d of %d lines matched, %d unique clip(s)", len(res.Matches), res.Lines, len(res.Exported)),
			}
			if missed := res.Lines - len(res.Matches); missed > 0 {
				status = append(status, errorStyle.Render(fmt.Sprintf("%d line(s) had no matching clip", missed)))
			}
			status = append(status, successStyle.Render("exported to "+dir), "report "+res.Report)
			fmt.Fprint(out, bullets(status))
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script file, one line per take")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Destination folder (default: ordered/ in paths.output_dir)")
	return cmd
}

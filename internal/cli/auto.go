package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/pipeline"
)

func newAutoCommand(cc *commandContext) *cobra.Command {
	var (
		script   string
		output   string
		captions bool
		dryRun   bool
		music    musicFlags
	)
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Pick the best clip for every line and assemble the result",
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
			if output == "" {
				output = pipeline.OutputPath(st.Config.Paths.OutputDir, s.script, time.Now())
			}
			if !cmd.Flags().Changed("captions") {
				captions = st.Config.Assembly.Captions
			}

			bed, err := music.bed(st.Config)
			if err != nil {
				return err
			}

			res, runErr := pipeline.Auto(cmd.Context(), s.ctrl, pipeline.AutoOptions{
				Output:   output,
				Captions: captions,
				Music:    bed,
				DryRun:   dryRun,
				Logger:   logging.NewComponentLogger(st.Log, "auto"),
			})

			var status []string
			for _, p := range res.Picks {
				if p.Selection == nil {
					status = append(status, errorStyle.Render(fmt.Sprintf("line %d skipped: no matching clips", p.Line.Index)))
					continue
				}
				status = append(status, fmt.Sprintf("line %d → %s %s (%.2f %s)",
					p.Line.Index, p.Selection.ClipID,
					fmtRange(p.Selection.TrimStart, p.Selection.TrimEnd),
					p.Candidate.Score, p.Candidate.Tier))
			}
			if res.Job != nil && runErr == nil {
				status = append(status, successStyle.Render("assembled "+res.Job.Output))
				if res.Job.Manifest != "" {
					status = append(status, "manifest "+res.Job.Manifest)
				}
			}
			if len(status) > 0 {
				fmt.Fprint(cmd.OutOrStdout(), bullets(status))
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script file, one line per take")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output video path (default: a new file in paths.output_dir)")
	cmd.Flags().BoolVar(&captions, "captions", false, "Burn captions from the transcripts into the output")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Pick clips without rendering")
	music.register(cmd)
	return cmd
}

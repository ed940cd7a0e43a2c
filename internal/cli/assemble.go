package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linecut/internal/config"
	"github.com/forPelevin/linecut/internal/domain/assembly"
	"github.com/forPelevin/linecut/internal/pipeline"
	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

func newAssembleCommand(cc *commandContext) *cobra.Command {
	var (
		script   string
		session  string
		output   string
		partial  bool
		captions bool
		music    musicFlags
	)
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Render the saved selections into one video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cc.stack(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := openSession(cmd.Context(), st, sessionOptions{
				script:         script,
				session:        session,
				requireSession: true,
			})
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

			job, err := s.ctrl.Assemble(cmd.Context(), assembly.Options{AllowPartial: partial, Captions: captions, Music: bed}, output)
			var inc *types.IncompleteSelectionError
			if errors.As(err, &inc) {
				fmt.Fprint(cmd.OutOrStdout(), unresolvedReport(s, inc.Unresolved))
				return fmt.Errorf("%w (pass --partial to assemble the selected lines only)", err)
			}
			if err != nil {
				return err
			}
			status := []string{
				successStyle.Render("assembled " + job.Output),
				fmt.Sprintf("%d cut(s) in %s", len(job.Cuts), job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond)),
			}
			if job.Partial {
				status = append(status, "partial: unresolved lines were left out")
			}
			if job.Manifest != "" {
				status = append(status, "manifest "+job.Manifest)
			}
			fmt.Fprint(cmd.OutOrStdout(), bullets(status))
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script file, one line per take")
	cmd.Flags().StringVar(&session, "session", "", "Session file (default paths.session_file)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output video path (default: a new file in paths.output_dir)")
	cmd.Flags().BoolVar(&partial, "partial", false, "Assemble even when some lines have no selection")
	cmd.Flags().BoolVar(&captions, "captions", false, "Burn captions from the transcripts into the output")
	music.register(cmd)
	return cmd
}

type musicFlags struct {
	file string
	off  bool
}

func (m *musicFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.file, "music", "", "Background music mixed under the dialogue (default assembly.music.file)")
	cmd.Flags().BoolVar(&m.off, "no-music", false, "Render without background music")
}

// bed resolves the music flags against the config. --no-music wins.
func (m *musicFlags) bed(cfg *config.Config) (*types.MusicBed, error) {
	if m.off {
		return nil, nil
	}
	bed := cfg.MusicBed()
	if m.file == "" {
		return bed, nil
	}
	path, err := config.ExpandPath(m.file)
	if err != nil {
		return nil, fmt.Errorf("--music: %w", err)
	}
	if bed == nil {
		c := *cfg
		c.Assembly.Music.File = path
		return c.MusicBed(), nil
	}
	bed.Path = path
	return bed, nil
}

func unresolvedReport(s *session, idx []int) string {
	lines := make([]string, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(s.lines) {
			lines = append(lines, errorStyle.Render(fmt.Sprintf("line %d unresolved: %s", i, truncate(s.lines[i].Text, 60))))
		}
	}
	return bullets(lines)
}

func newStatusCommand(cc *commandContext) *cobra.Command {
	var (
		script  string
		session string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which lines of a saved session are resolved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cc.stack(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := openSession(cmd.Context(), st, sessionOptions{script: script, session: session, resume: true})
			if err != nil {
				return err
			}
			lines, err := s.ctrl.Lines()
			if err != nil {
				return err
			}
			summary, err := s.ctrl.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "State", "Clip", "Trim", "Line"},
				statusRows(lines),
				[]columnAlignment{alignRight},
			))
			state := "incomplete"
			if summary.Complete {
				state = successStyle.Render("complete")
			}
			fmt.Fprint(cmd.OutOrStdout(), bullets([]string{
				fmt.Sprintf("%d selected, %d skipped, %d unvisited", summary.Selected, summary.Skipped, summary.Unvisited),
				"session " + state,
				"file " + s.path,
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script file, one line per take")
	cmd.Flags().StringVar(&session, "session", "", "Session file (default paths.session_file)")
	return cmd
}

func statusRows(lines []usecase.LineSummary) [][]string {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		clip, trim := "", ""
		if l.Selection != nil {
			clip = l.Selection.ClipID
			trim = fmtRange(l.Selection.TrimStart, l.Selection.TrimEnd)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", l.Line.Index),
			strings.ToUpper(l.State.String()[:1]) + l.State.String()[1:],
			clip,
			trim,
			truncate(l.Line.Text, 50),
		})
	}
	return rows
}

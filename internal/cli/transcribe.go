package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/pipeline"
)

func newTranscribeCommand(cc *commandContext) *cobra.Command {
	var (
		force   bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe every clip in the clips folder into the transcript store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cc.stack(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := pipeline.Transcribe(cmd.Context(), pipeline.TranscribeDeps{
				Clips:   st.Clips,
				Sources: st.Clips,
				Video:   st.FFmpeg,
				ASR:     st.Whisper(),
				Store:   st.Store,
				Writer:  st.Writer,
				Logger:  logging.NewComponentLogger(st.Log, "transcribe"),
			}, pipeline.TranscribeOptions{
				WorkDir: filepath.Join(st.Config.Paths.WorkDir, "runs"),
				Force:   force,
				Workers: workers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, bullets([]string{
				successStyle.Render(fmt.Sprintf("%d transcribed", len(rep.Transcribed))),
				fmt.Sprintf("%d already present", len(rep.Skipped)),
				fmt.Sprintf("%d failed", len(rep.Failed)),
			}))
			if len(rep.Failed) == 0 {
				return nil
			}
			clips := make([]string, 0, len(rep.Failed))
			for c := range rep.Failed {
				clips = append(clips, c)
			}
			sort.Strings(clips)
			rows := make([][]string, 0, len(clips))
			for _, c := range clips {
				rows = append(rows, []string{c, truncate(rep.Failed[c].Error(), 80)})
			}
			fmt.Fprintln(out, renderTable([]string{"Clip", "Error"}, rows, nil))
			return fmt.Errorf("%d clip(s) failed to transcribe", len(rep.Failed))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Re-transcribe clips that already have a transcript")
	cmd.Flags().IntVar(&workers, "workers", 1, "Clips to transcribe in parallel")
	return cmd
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linecut/internal/api"
	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/sessionfile"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	var (
		script   string
		session  string
		bind     string
		noResume bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the selection API for an operator session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := cc.stack(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			hub := api.NewHub(logging.NewComponentLogger(st.Log, "events"))
			s, err := openSession(cmd.Context(), st, sessionOptions{
				script:  script,
				session: session,
				resume:  !noResume,
				events:  hub,
			})
			if err != nil {
				return err
			}
			if bind == "" {
				bind = st.Config.Server.Bind
			}

			srv := api.New(s.ctrl, hub, st.Clips, api.Options{
				OutputDir:   st.Config.Paths.OutputDir,
				SessionFile: s.path,
				Script:      s.script,
				Captions:    st.Config.Assembly.Captions,
				Music:       st.Config.MusicBed(),
				Logger:      logging.NewComponentLogger(st.Log, "api"),
			})
			fmt.Fprint(cmd.OutOrStdout(), bullets([]string{
				fmt.Sprintf("session %s: %d lines", s.ctrl.SessionID(), len(s.lines)),
				"listening on http://" + bind,
			}))
			serveErr := srv.ListenAndServe(cmd.Context(), bind)

			if j, ok := s.ctrl.Job(); ok && !j.Done() {
				_ = s.ctrl.CancelAssembly()
			}
			// Save on shutdown; the command context is canceled by now.
			if id, snap, err := s.ctrl.Snapshot(); err == nil {
				saveCtx := context.WithoutCancel(cmd.Context())
				if err := sessionfile.Save(saveCtx, s.path, sessionfile.FromSnapshot(id, s.script, snap, time.Now())); err != nil {
					st.Log.Error("session not saved", "path", s.path, "error", err)
				} else {
					st.Log.Info("session saved", "path", s.path)
				}
			}
			return serveErr
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "Script file, one line per take")
	cmd.Flags().StringVar(&session, "session", "", "Session file (default paths.session_file)")
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default server.bind)")
	cmd.Flags().BoolVar(&noResume, "fresh", false, "Ignore a saved session and start over")
	return cmd
}

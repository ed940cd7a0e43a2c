// Package cli implements the linecut command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "linecut",
		Short:         "Match script lines to recorded takes and cut them into one video",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cc.configPath, "config", "c", "", "Configuration file (default ./linecut.toml when present)")
	pf.StringVar(&cc.clipsDir, "clips", "", "Directory holding the source clips")
	pf.StringVar(&cc.transcriptsDir, "transcripts", "", "Directory holding clip transcripts (fs store)")
	pf.StringVar(&cc.store, "store", "", "Transcript store backend: fs, sqlite or s3")
	pf.StringVar(&cc.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&cc.logFormat, "log-format", "", "Log format: console or json")

	root.AddCommand(
		newMatchCommand(cc),
		newAutoCommand(cc),
		newServeCommand(cc),
		newAssembleCommand(cc),
		newExportCommand(cc),
		newStatusCommand(cc),
		newTranscribeCommand(cc),
	)
	return root
}

package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PG-9-9/Musical-Video-Generator/config"
	"github.com/PG-9-9/Musical-Video-Generator/pkg/logger"
)

type rootOptions struct {
	verbose bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mvgen",
		Short:         "Render emotion-driven visuals synchronized to music",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if opts.verbose {
				level = "debug"
			} else if level == "info" {
				level = "warn"
			}
			if err := logger.Setup(level, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newAnalyzeCmd(opts), newRenderCmd(opts), newEventsCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

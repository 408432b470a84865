package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/mlpipe/internal/artifact"
	"github.com/YuminosukeSato/mlpipe/internal/config"
	"github.com/YuminosukeSato/mlpipe/pkg/errors"
	"github.com/YuminosukeSato/mlpipe/pkg/log"
)

// app is the state shared by all subcommands of one invocation.
type app struct {
	cfgPath string
	cfg     *config.Config

	provider *log.Provider
	logger   log.Logger
	runID    string

	out    io.Writer
	green  func(a ...interface{}) string
	red    func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
}

func newApp(out io.Writer) *app {
	return &app{
		out:    out,
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
	}
}

// setup loads the configuration and opens the run's log file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Scaffold(); err != nil {
		return err
	}
	opts := cfg.LogOptions()
	opts.Console = cmd.ErrOrStderr()
	p, err := log.NewProvider(opts)
	if err != nil {
		return errors.WrapKind(err, errors.KindIO, "mlpipe.setup", "open logs")
	}

	a.cfg = cfg
	a.provider = p
	a.runID = artifact.NewRunID()
	a.logger = p.GetLogger().With(log.RunIDKey, a.runID)
	a.logger.Info("Pipeline started", "command", cmd.Name(), "config", a.cfgPath, log.PathKey, p.Path())
	return nil
}

func (a *app) close() {
	if a.provider != nil {
		_ = a.provider.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mlpipe",
		Short:         "Student score regression pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", config.DefaultPath, "pipeline configuration file")

	root.AddCommand(
		a.ingestCmd(),
		a.splitCmd(),
		a.transformCmd(),
		a.tuneCmd(),
		a.predictCmd(),
		a.compareCmd(),
		a.importanceCmd(),
		a.runCmd(),
	)
	return root
}

// execute runs one invocation and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s [%s] %v\n", a.red("error:"), errors.KindOf(err), err)
		return 1
	}
	return 0
}

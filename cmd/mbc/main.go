package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/micro-blocks/mbc/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app holds what every command needs once flags and config are resolved.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zerolog.Nop()}
	var configFile string

	root := &cobra.Command{
		Use:           "mbc",
		Short:         "Compile block programs for micro-blocks devices",
		Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = cfg.Logger(cmd.ErrOrStderr())
			if cfg.NoColor || !isTerminal(cmd.OutOrStdout()) {
				color.NoColor = true
			}
			if cfg.File != "" {
				a.log.Debug().Str("file", cfg.File).Msg("using config file")
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default $HOME/.mbc.yaml)")
	flags.String(config.KeyDevice, "", "device base URL")
	flags.Duration(config.KeyTimeout, 0, "device request timeout")
	flags.String(config.KeyLogLevel, "", "log level (trace, debug, info, warn, error)")
	flags.Bool(config.KeyNoColor, false, "disable colored output")
	flags.StringP(config.KeyOutput, "o", "", "output format (text, json)")
	for _, key := range []string{config.KeyDevice, config.KeyTimeout, config.KeyLogLevel, config.KeyNoColor, config.KeyOutput} {
		if err := a.v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}
	_ = root.RegisterFlagCompletionFunc(config.KeyOutput, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		a.compileCmd(),
		a.disCmd(),
		a.uploadCmd(),
		a.runCmd(),
		a.emulateCmd(),
		a.monitorCmd(),
		a.triggerCmd(),
		a.gravityCmd(),
		a.functionsCmd(),
		a.blocksCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fatal(err)
	}
}

func fatal(msg any) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintln(os.Stderr, color.RedString(s))
	os.Exit(1)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

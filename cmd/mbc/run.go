package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/micro-blocks/mbc/sim"
	"github.com/spf13/cobra"
)

// tracer prints native calls as they happen.
type tracer struct {
	w io.Writer
}

func (t tracer) Config() sim.ObserverConfig {
	return sim.NewObserverConfig(sim.StepNone)
}

func (t tracer) OnStep(sim.StepEvent) bool { return true }

func (t tracer) OnCall(ev sim.CallEvent) bool {
	fmt.Fprintf(t.w, "%s thread %d @%d: %s (depth %d)\n",
		color.HiBlackString("trace"), ev.Thread, ev.Offset, ev.Function, ev.StackDepth)
	return true
}

type runReport struct {
	Output  []string `json:"output"`
	Clock   string   `json:"clock"`
	Steps   int      `json:"steps"`
	Threads []string `json:"threads"`
}

func (a *app) runCmd() *cobra.Command {
	var (
		duration time.Duration
		seed     int64
		trace    bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a program in the simulator",
		Long: "Run a program in the simulator for a span of virtual time. Delays " +
			"do not take real time; the clock jumps to the next thread to wake.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := a.loadImage(args[0])
			if err != nil {
				return err
			}
			jsonOut := a.cfg.Output == "json"
			opts := []sim.Option{sim.WithSeed(seed), sim.WithLogger(a.log)}
			if !jsonOut {
				opts = append(opts, sim.WithOutput(cmd.OutOrStdout()))
			}
			if trace {
				opts = append(opts, sim.WithObserver(tracer{w: cmd.ErrOrStderr()}))
			}
			m, err := sim.Load(image, opts...)
			if err != nil {
				return err
			}
			runErr := m.RunFor(cmd.Context(), duration)
			if errors.Is(runErr, sim.ErrStepLimit) {
				a.log.Warn().Dur("clock", m.Now()).Msg("program is busy without delays, stopped")
				runErr = nil
			}

			report := runReport{Output: m.Output(), Clock: m.Now().String(), Steps: m.Steps()}
			for _, s := range m.States() {
				report.Threads = append(report.Threads, s.String())
			}
			if jsonOut {
				if err := a.printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				a.log.Info().
					Str("clock", report.Clock).
					Int("steps", report.Steps).
					Strs("threads", report.Threads).
					Msg("simulation finished")
			}
			return runErr
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 10*time.Second, "virtual time to run")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every native call")
	return cmd
}

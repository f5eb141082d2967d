package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/micro-blocks/mbc/config"
	"github.com/micro-blocks/mbc/emulator"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) emulateCmd() *cobra.Command {
	var tick time.Duration
	cmd := &cobra.Command{
		Use:   "emulate [FILE]",
		Short: "Serve a simulated device that accepts uploads and websocket clients",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := emulator.New(emulator.WithLogger(a.log), emulator.WithTick(tick))
			if len(args) == 1 {
				image, err := a.loadImage(args[0])
				if err != nil {
					return err
				}
				if err := s.Load(image); err != nil {
					return err
				}
			}
			ln, err := net.Listen("tcp", a.v.GetString(config.KeyListen))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "emulated device listening on http://%s\n", ln.Addr())
			return serve(cmd.Context(), s, ln)
		},
	}
	cmd.Flags().String(config.KeyListen, "", "address to listen on")
	_ = a.v.BindPFlag(config.KeyListen, cmd.Flags().Lookup(config.KeyListen))
	cmd.Flags().DurationVar(&tick, "tick", emulator.DefaultTick, "virtual time advanced per step")
	return cmd
}

// serve runs the HTTP server and the simulation until ctx is cancelled.
func serve(ctx context.Context, s *emulator.Server, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	return g.Wait()
}

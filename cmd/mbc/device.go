package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/internal/table"
	"github.com/micro-blocks/mbc/link"
	"github.com/spf13/cobra"
)

func (a *app) dial(ctx context.Context) (*link.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return link.Dial(ctx, a.cfg.Device, link.WithLogger(a.log), link.WithWriteTimeout(a.cfg.Timeout))
}

func (a *app) send(cmd *cobra.Command, m link.Message) error {
	conn, err := a.dial(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Send(m)
}

func (a *app) triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger THREAD",
		Short: "Fire the callback thread with the given index, like pressing a GUI button",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid thread index %q", args[0])
			}
			return a.send(cmd, link.Trigger(uint16(thread)))
		},
	}
}

func (a *app) gravityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gravity X Y Z",
		Short: "Send gravity sensor values to the device",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v [3]float32
			for i, arg := range args {
				f, err := strconv.ParseFloat(arg, 32)
				if err != nil {
					return fmt.Errorf("invalid axis value %q", arg)
				}
				v[i] = float32(f)
			}
			return a.send(cmd, link.Gravity(v[0], v[1], v[2]))
		},
	}
}

func (a *app) monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print console output and GUI changes of the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			go func() {
				<-cmd.Context().Done()
				conn.Close()
			}()
			out := cmd.OutOrStdout()
			for {
				m, err := conn.Receive()
				if err != nil {
					if cmd.Context().Err() != nil || link.IsClosed(err) {
						return nil
					}
					return err
				}
				if err := a.printMessage(out, m); err != nil {
					return err
				}
			}
		},
	}
}

func (a *app) printMessage(w io.Writer, m link.Message) error {
	switch m.Type {
	case link.LogSnapshot:
		if a.cfg.Output == "json" {
			return a.printJSON(w, map[string]string{"log": string(m.Payload)})
		}
		_, err := fmt.Fprintln(w, string(m.Payload))
		return err
	case link.UISnapshot:
		elements, err := link.DecodeUI(m)
		if err != nil {
			return err
		}
		if a.cfg.Output == "json" {
			return a.printJSON(w, map[string]any{"ui": elements})
		}
		return printElements(w, elements)
	default:
		a.log.Debug().Stringer("type", m.Type).Int("size", len(m.Payload)).Msg("unhandled message")
		return nil
	}
}

func printElements(w io.Writer, elements []link.Element) error {
	var rows [][]string
	for _, e := range elements {
		detail := e.Text
		switch e.Kind {
		case link.Button:
			detail = fmt.Sprintf("%q click=%s press=%s release=%s",
				e.Text, threadRef(e.OnClick), threadRef(e.OnPress), threadRef(e.OnRelease))
		case link.SignalLight:
			detail = color.RGB(int(e.Colour[0]), int(e.Colour[1]), int(e.Colour[2])).Sprint("●") +
				fmt.Sprintf(" #%02x%02x%02x", e.Colour[0], e.Colour[1], e.Colour[2])
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d,%d", e.X, e.Y),
			fmt.Sprintf("%dx%d", e.ColSpan, e.RowSpan),
			e.Kind.String(),
			detail,
		})
	}
	return table.NewTable(w).
		WithHeader([]string{"CELL", "SPAN", "KIND", "DETAIL"}).
		WithRows(rows).
		Render()
}

func threadRef(t uint16) string {
	if t == bytecode.NoThread {
		return "-"
	}
	return strconv.Itoa(int(t))
}

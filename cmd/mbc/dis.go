package main

import (
	"fmt"

	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/dis"
	"github.com/spf13/cobra"
)

func (a *app) disCmd() *cobra.Command {
	var thread int
	cmd := &cobra.Command{
		Use:   "dis FILE",
		Short: "Disassemble an image, compiling the workspace first if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := a.loadImage(args[0])
			if err != nil {
				return err
			}
			img, err := bytecode.ParseImage(image)
			if err != nil {
				return err
			}
			prog, err := dis.DisassembleImage(img)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.Output == "json" {
				return a.printJSON(out, prog)
			}
			if thread < 0 {
				return dis.PrintProgram(prog, out)
			}
			if thread >= len(prog.Threads) {
				return fmt.Errorf("thread %d out of range, image has %d", thread, len(prog.Threads))
			}
			return dis.Print(prog.Threads[thread].Instructions, out)
		},
	}
	cmd.Flags().IntVarP(&thread, "thread", "t", -1, "only disassemble this thread")
	return cmd
}

package main

import (
	"strconv"
	"strings"

	"github.com/micro-blocks/mbc/compiler"
	"github.com/micro-blocks/mbc/internal/table"
	"github.com/micro-blocks/mbc/native"
	"github.com/spf13/cobra"
)

type functionInfo struct {
	Number    uint16 `json:"number"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Delta     int    `json:"delta"`
}

func (a *app) functionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the native functions of the virtual machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []functionInfo
			for _, fn := range native.All() {
				sig, _ := fn.Signature()
				infos = append(infos, functionInfo{
					Number:    uint16(fn),
					Name:      sig.Name,
					Signature: sig.String(),
					Delta:     sig.Delta(),
				})
			}
			if a.cfg.Output == "json" {
				return a.printJSON(cmd.OutOrStdout(), infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					strconv.Itoa(int(info.Number)),
					info.Signature,
					strconv.Itoa(info.Delta),
				})
			}
			return table.NewTable(cmd.OutOrStdout()).
				WithHeader([]string{"#", "SIGNATURE", "STACK"}).
				WithColumnAlignment([]table.Alignment{table.AlignRight, table.AlignLeft, table.AlignRight}).
				WithRows(rows).
				Render()
		},
	}
}

type blockInfo struct {
	Kind    string `json:"kind"`
	Returns string `json:"returns"`
	Role    string `json:"role"`
	Doc     string `json:"doc"`
}

func (a *app) blocksCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List the block kinds the compiler understands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := compiler.DefaultRegistry()
			var infos []blockInfo
			for _, kind := range reg.Kinds() {
				if !strings.HasPrefix(kind, prefix) {
					continue
				}
				r, _ := reg.Lookup(kind)
				infos = append(infos, blockInfo{
					Kind:    kind,
					Returns: r.Returns.String(),
					Role:    role(r),
					Doc:     r.Doc,
				})
			}
			if a.cfg.Output == "json" {
				return a.printJSON(cmd.OutOrStdout(), infos)
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{info.Kind, info.Returns, info.Role, info.Doc})
			}
			return table.NewTable(cmd.OutOrStdout()).
				WithHeader([]string{"KIND", "RETURNS", "ROLE", "DESCRIPTION"}).
				WithRows(rows).
				Render()
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list kinds starting with this prefix")
	return cmd
}

func role(r compiler.Registration) string {
	var parts []string
	if r.Extract != nil {
		parts = append(parts, "thread")
	}
	if r.Init != nil {
		parts = append(parts, "init")
	}
	if r.Generate != nil {
		parts = append(parts, "code")
	}
	return strings.Join(parts, ",")
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/micro-blocks/mbc/compiler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type compileOptions struct {
	out      string
	manifest string
	watch    bool
}

type compiled struct {
	Source   string             `json:"source"`
	Output   string             `json:"output"`
	Manifest *compiler.Manifest `json:"manifest"`
}

func (a *app) compileCmd() *cobra.Command {
	var opts compileOptions
	cmd := &cobra.Command{
		Use:   "compile FILE...",
		Short: "Compile workspaces (.json, .yaml, .toml) into device images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 && (opts.out != "" || opts.manifest != "") {
				return errors.New("--out and --manifest need a single input file")
			}
			results, err := a.compileAll(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			if err := a.report(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if opts.watch {
				return a.watch(cmd.Context(), cmd.OutOrStdout(), args, opts)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.out, "out", "", "image output path (default: input with .mbc extension)")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "also write a manifest (.json or .cbor)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "recompile when an input changes")
	return cmd
}

// compileAll compiles every file concurrently. Results keep the order of
// paths.
func (a *app) compileAll(ctx context.Context, paths []string, opts compileOptions) ([]compiled, error) {
	results := make([]compiled, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			r, err := a.compileOne(path, opts)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *app) compileOne(path string, opts compileOptions) (compiled, error) {
	res, err := a.compileFile(path)
	if err != nil {
		return compiled{}, err
	}
	out := opts.out
	if out == "" {
		out = imagePath(path)
	}
	// The manifest goes first so a failed run leaves no image behind.
	m := res.Manifest()
	if opts.manifest != "" {
		if err := writeManifest(opts.manifest, m); err != nil {
			return compiled{}, err
		}
	}
	if err := os.WriteFile(out, res.Image, 0o644); err != nil {
		return compiled{}, err
	}
	return compiled{Source: path, Output: out, Manifest: m}, nil
}

func writeManifest(path string, m *compiler.Manifest) error {
	format := compiler.ManifestJSON
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		format = compiler.ManifestCBOR
	}
	var buf bytes.Buffer
	if err := compiler.WriteManifest(&buf, m, format); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (a *app) report(w io.Writer, results []compiled) error {
	if a.cfg.Output == "json" {
		return a.printJSON(w, results)
	}
	for _, r := range results {
		m := r.Manifest
		fmt.Fprintf(w, "%s -> %s: %s, %d %s, memory %s\n",
			r.Source, r.Output,
			humanize.Bytes(uint64(m.ImageSize)),
			len(m.Threads), plural(len(m.Threads), "thread", "threads"),
			humanize.Bytes(uint64(m.MemorySize)))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// watch recompiles an input whenever it is written. Compile errors are
// reported and watching continues.
func (a *app) watch(ctx context.Context, w io.Writer, paths []string, opts compileOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]string{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = p
		// Editors often replace files, so watch the directory.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}
	a.log.Info().Int("files", len(paths)).Msg("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path, ok := watched[ev.Name]
			if !ok {
				continue
			}
			r, err := a.compileOne(path, opts)
			if err != nil {
				a.log.Error().Err(err).Msg("compile failed")
				continue
			}
			if err := a.report(w, []compiled{r}); err != nil {
				return err
			}
		}
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hokaccha/go-prettyjson"
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/compiler"
)

// imageExts are file extensions read as compiled images rather than
// workspaces.
var imageExts = map[string]bool{".mbc": true, ".bin": true}

func isImageFile(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// compileFile compiles the workspace at path.
func (a *app) compileFile(path string) (*compiler.Result, error) {
	prog, err := block.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res, err := compiler.Compile(prog, compiler.WithLogger(a.log.With().Str("file", path).Logger()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// loadImage returns the image stored at path, compiling it first when path
// is a workspace.
func (a *app) loadImage(path string) ([]byte, error) {
	if isImageFile(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if _, err := bytecode.ParseImage(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return data, nil
	}
	res, err := a.compileFile(path)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// imagePath returns the default output path for a workspace.
func imagePath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".mbc"
}

// printJSON writes v as JSON, colourized unless colour is disabled.
func (a *app) printJSON(w io.Writer, v any) error {
	var data []byte
	var err error
	if a.cfg.NoColor || !isTerminal(w) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = prettyjson.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

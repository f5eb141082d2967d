package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/micro-blocks/mbc/compiler"
	"github.com/micro-blocks/mbc/emulator"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

const helloWorkspace = `
blocks:
  - type: basic_on_start
    inputs:
      BODY:
        block:
          type: text_print
          inputs:
            TEXT: {block: {type: text, fields: {TEXT: hello}}}
`

// execute runs the root command with an isolated home directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(ctx)
	return stdout.String(), err
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.yaml")
	require.NoError(t, os.WriteFile(path, []byte(helloWorkspace), 0o644))
	return path
}

func TestCompile(t *testing.T) {
	src := writeWorkspace(t)
	manifest := filepath.Join(filepath.Dir(src), "hello.json")

	out, err := execute(t, "compile", src, "--manifest", manifest)
	require.NoError(t, err)
	require.Contains(t, out, src+" -> "+imagePath(src))

	image, err := os.ReadFile(imagePath(src))
	require.NoError(t, err)
	require.Equal(t, []byte("MB"), image[:2])

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	var m compiler.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, len(image), m.ImageSize)
	require.NotEmpty(t, m.Threads)
}

func TestCompileCBORManifest(t *testing.T) {
	src := writeWorkspace(t)
	dir := filepath.Dir(src)
	manifest := filepath.Join(dir, "hello.cbor")

	_, err := execute(t, "compile", src, "--out", filepath.Join(dir, "out.bin"), "--manifest", manifest)
	require.NoError(t, err)

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	m, err := compiler.ReadManifest(data)
	require.NoError(t, err)
	require.NotZero(t, m.ImageSize)
	require.FileExists(t, filepath.Join(dir, "out.bin"))
}

func TestCompileManifestFailureLeavesNoImage(t *testing.T) {
	src := writeWorkspace(t)
	manifest := filepath.Join(filepath.Dir(src), "missing", "hello.json")

	_, err := execute(t, "compile", src, "--manifest", manifest)
	require.Error(t, err)
	require.NoFileExists(t, imagePath(src))
}

func TestCompileJSONReport(t *testing.T) {
	src := writeWorkspace(t)
	out, err := execute(t, "compile", src, "-o", "json")
	require.NoError(t, err)

	var results []compiled
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.Equal(t, src, results[0].Source)
	require.Equal(t, imagePath(src), results[0].Output)
}

func TestCompileErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("blocks:\n  - type: no_such_block\n"), 0o644))

	_, err := execute(t, "compile", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.yaml")
}

func TestCompileRejectsOutWithManyInputs(t *testing.T) {
	_, err := execute(t, "compile", "a.yaml", "b.yaml", "--out", "x.mbc")
	require.ErrorContains(t, err, "single input file")
}

func TestRun(t *testing.T) {
	src := writeWorkspace(t)
	out, err := execute(t, "run", src, "--for", "1s")
	require.NoError(t, err)
	require.Equal(t, "hello\n", out)
}

func TestRunJSON(t *testing.T) {
	src := writeWorkspace(t)
	out, err := execute(t, "run", src, "--for", "1s", "-o", "json")
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, []string{"hello"}, report.Output)
	require.Equal(t, "1s", report.Clock)
}

func TestDis(t *testing.T) {
	src := writeWorkspace(t)
	out, err := execute(t, "dis", src)
	require.NoError(t, err)
	require.Contains(t, out, "thread 0")
	require.Contains(t, out, "textLoad")
	require.Contains(t, out, "hello")

	_, err = execute(t, "dis", src, "--thread", "99")
	require.ErrorContains(t, err, "out of range")
}

func TestFunctions(t *testing.T) {
	out, err := execute(t, "functions")
	require.NoError(t, err)
	require.Contains(t, out, "basicDelay(ms number)")
	require.Contains(t, out, "textLoad(offset u16) string")
}

func TestBlocks(t *testing.T) {
	out, err := execute(t, "blocks", "--prefix", "text")
	require.NoError(t, err)
	require.Contains(t, out, "text_print")
	require.NotContains(t, out, "math_number")
}

func TestUploadToEmulator(t *testing.T) {
	s := emulator.New()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	src := writeWorkspace(t)
	out, err := execute(t, "upload", src, "-q", "--device", srv.URL)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "uploaded "))
	require.Contains(t, out, srv.URL+"/api/code")

	require.NoError(t, s.Advance(context.Background(), time.Second))
	require.Equal(t, []string{"hello"}, s.Output())
}

func TestTriggerRejectsBadIndex(t *testing.T) {
	_, err := execute(t, "trigger", "left")
	require.ErrorContains(t, err, "invalid thread index")

	_, err = execute(t, "gravity", "1", "x", "0")
	require.ErrorContains(t, err, "invalid axis value")
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "functions", "-o", "xml")
	require.Error(t, err)
}

package cmd

import (
	"bytes"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomasbasham/cli-runtime/iooption"

	"github.com/tendant/simple-photo-pipeline/internal/export"
)

func writePhotos(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		img := imaging.New(6, 4, color.NRGBA{R: 140, G: 120, B: 100, A: 255})
		require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	o := NewRootOptions(iooption.IOStreams{In: bytes.NewReader(nil), Out: &out, ErrOut: &errOut})
	cmd := NewRootCommandWithArgs(o)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := writePhotos(t, "a.png", "b.png", "c.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))

	out, err := execute(t, "run",
		"--manifest-root", dir,
		"--manifest-glob", "*.png",
		"--page-size", "2",
		"--poll-interval", "5ms",
		"--log-level", "error",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "4 photos: 3 filtered, 0 downloaded, 1 failed")
	assert.Contains(t, out, "failed   Failed to load")
}

func TestExportCommand(t *testing.T) {
	dir := writePhotos(t, "one.jpg", "two.jpg")
	outDir := t.TempDir()

	out, err := execute(t, "export",
		"--manifest-root", dir,
		"--manifest-glob", "*.jpg",
		"--dir", outDir,
		"--poll-interval", "5ms",
		"--log-level", "error",
		"--json",
	)
	require.NoError(t, err)

	var report export.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Exported)
	for _, res := range report.Results {
		_, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(res.ObjectName)))
		require.NoError(t, err)
	}
}

func TestRunCommand_RequiresManifest(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "run", "--log-level", "error")
	require.Error(t, err)
}

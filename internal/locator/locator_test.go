package locator_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/raphaelgruber/fileconv/internal/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeExecutable creates an executable stub named name in dir.
func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755))
	return p
}

func TestLocatePrefersInstallLocation(t *testing.T) {
	installDir := t.TempDir()
	pathDir := t.TempDir()
	installed := writeExecutable(t, installDir, "soffice")
	writeExecutable(t, pathDir, "soffice")

	l := locator.New(
		locator.WithCandidates(locator.Office, filepath.Join(installDir, "soffice*")),
		locator.WithSearchPath(pathDir),
	)

	got, ok := l.Locate(locator.Office)
	require.True(t, ok)
	assert.Equal(t, installed, got)
}

func TestLocateFallsBackToSearchPath(t *testing.T) {
	emptyDir := t.TempDir()
	pathDir := t.TempDir()
	onPath := writeExecutable(t, pathDir, "magick")

	l := locator.New(
		locator.WithCandidates(locator.ImageMagick, filepath.Join(emptyDir, "magick")),
		locator.WithSearchPath(string(os.PathListSeparator)+emptyDir+string(os.PathListSeparator)+pathDir),
	)

	got, ok := l.Locate(locator.ImageMagick)
	require.True(t, ok)
	assert.Equal(t, onPath, got)
}

func TestLocateNotFound(t *testing.T) {
	l := locator.New(
		locator.WithCandidates(locator.Office),
		locator.WithSearchPath(t.TempDir()),
	)

	got, ok := l.Locate(locator.Office)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestLocateIgnoresNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	pathDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pathDir, "magick"), []byte("x"), 0o644))

	l := locator.New(
		locator.WithCandidates(locator.ImageMagick),
		locator.WithSearchPath(pathDir),
	)

	_, ok := l.Locate(locator.ImageMagick)
	assert.False(t, ok)
}

func TestLocateCachesResult(t *testing.T) {
	pathDir := t.TempDir()
	l := locator.New(
		locator.WithCandidates(locator.ImageMagick),
		locator.WithSearchPath(pathDir),
	)

	_, ok := l.Locate(locator.ImageMagick)
	require.False(t, ok)

	// Installed after the first lookup; the cached miss stands.
	writeExecutable(t, pathDir, "magick")
	_, ok = l.Locate(locator.ImageMagick)
	assert.False(t, ok)
}

func TestSetPathOverrides(t *testing.T) {
	l := locator.New(
		locator.WithCandidates(locator.Office),
		locator.WithSearchPath(t.TempDir()),
	)

	l.SetPath(locator.Office, "/custom/soffice")
	got, ok := l.Locate(locator.Office)
	require.True(t, ok)
	assert.Equal(t, "/custom/soffice", got)

	l.SetPath(locator.Office, "")
	_, ok = l.Locate(locator.Office)
	assert.False(t, ok)
}

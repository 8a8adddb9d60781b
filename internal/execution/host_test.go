package execution

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/pkg/exception"
)

func TestLookupRejectsMissingAndNonExecutable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flat"), []byte("data"), 0o644))

	h := NewHost(dir, time.Second)

	_, err := h.Lookup("nope")
	require.ErrorIs(t, err, exception.ErrPluginNotFound)

	_, err = h.Lookup("flat")
	require.ErrorIs(t, err, exception.ErrPluginNotFound)
}

func tempPluginDirs(t *testing.T) []string {
	t.Helper()
	dirs, err := filepath.Glob(filepath.Join(os.TempDir(), "plugin-*"))
	require.NoError(t, err)
	return dirs
}

func TestSpawnCleansUpWhenPluginNeverAttaches(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\nsleep 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stuck"), []byte(script), 0o755))

	before := tempPluginDirs(t)

	h := NewHost(dir, time.Second)
	h.attachTimeout = 50 * time.Millisecond

	_, err := h.Launch(context.Background(), "stuck")
	require.Error(t, err)

	require.ElementsMatch(t, before, tempPluginDirs(t), "socket dir left behind")
}

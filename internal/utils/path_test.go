package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	_, err := ResolvePath("")
	assert.Error(t, err)

	abs, err := ResolvePath("./test")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	abs, err = ResolvePath("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), abs)
}

func TestEnsureParentAndFileExists(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "file.txt")

	require.NoError(t, EnsureParent(target))
	assert.DirExists(t, filepath.Dir(target))
	assert.False(t, FileExists(target))

	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	assert.True(t, FileExists(target))
	assert.False(t, FileExists(filepath.Dir(target)), "directories are not files")
}

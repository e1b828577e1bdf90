package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindGoModFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "internal", "store")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/app\n"), 0o644))

	found, err := FindGoModFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "go.mod"), found)

	found, err = FindGoModFile(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "go.mod"), found)
}

func TestFindGoModFile_IgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "go.mod"), 0o755))

	_, err := FindGoModFile(root)
	assert.Error(t, err)
}

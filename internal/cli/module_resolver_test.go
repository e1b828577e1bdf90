package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleResolver_ResolveModuleNameFrom(t *testing.T) {
	resolver := NewModuleResolver()

	t.Run("custom module name provided", func(t *testing.T) {
		result, err := resolver.ResolveModuleNameFrom(t.TempDir(), "github.com/custom/module")
		require.NoError(t, err)
		assert.Equal(t, "github.com/custom/module", result)
	})

	t.Run("read from parent go.mod", func(t *testing.T) {
		root := t.TempDir()
		goModContent := `module github.com/example/testapp

go 1.25

require (
	github.com/gin-gonic/gin v1.11.0
	go.uber.org/fx v1.24.0
)
`
		require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte(goModContent), 0644))
		nested := filepath.Join(root, "internal", "store")
		require.NoError(t, os.MkdirAll(nested, 0755))

		result, err := resolver.ResolveModuleNameFrom(nested, "")
		require.NoError(t, err)
		assert.Equal(t, "github.com/example/testapp", result)

		mod, err := resolver.ReadModule(nested)
		require.NoError(t, err)
		assert.Equal(t, []string{"github.com/gin-gonic/gin", "go.uber.org/fx"}, mod.Requires)
	})

	t.Run("invalid go.mod", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("go 1.25\n"), 0644))

		_, err := resolver.ResolveModuleNameFrom(root, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "consider using --module flag")
	})
}

func TestModuleResolver_ResolveModuleName(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/cwd\n"), 0644))
	t.Chdir(root)

	result, err := NewModuleResolver().ResolveModuleName("")
	require.NoError(t, err)
	assert.Equal(t, "example.com/cwd", result)
}

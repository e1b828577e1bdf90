package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/tracegen/internal/models"
)

const storeSource = `package store

import "context"

type Record struct{ ID string }

type Repo interface {
	Get(ctx context.Context, id string) (*Record, error)
}
`

const appSource = `package app

import "example.com/shop/store"

type Service struct{ repo store.Repo }
`

func loadShop(t *testing.T, files map[string]string) *Snapshot {
	t.Helper()
	snap, err := FromSources(SourceConfig{
		Module:   "example.com/shop",
		Files:    files,
		Requires: []string{"go.uber.org/fx"},
	})
	require.NoError(t, err)
	require.Empty(t, snap.TypeErrors())
	return snap
}

func TestFromSources(t *testing.T) {
	snap := loadShop(t, map[string]string{
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	})

	require.Len(t, snap.Packages, 2)
	assert.Equal(t, "example.com/shop/app", snap.Packages[0].Path)
	assert.Equal(t, "example.com/shop/store", snap.Packages[1].Path)
	assert.Equal(t, Assembly{Name: "example.com/shop", Version: UnspecifiedVersion}, snap.Assembly)

	app := snap.Package("example.com/shop/app")
	require.NotNil(t, app)
	assert.Equal(t, "/src/example.com/shop/app", app.Dir)
	assert.Equal(t, []string{"example.com/shop/store"}, app.Imports)
	assert.True(t, app.DirectlyImports("example.com/shop/store"))
	assert.True(t, app.Manifest.References("context"), "transitive imports are part of the manifest")
	assert.True(t, app.Manifest.References("go.uber.org/fx"))
	assert.False(t, app.Manifest.References("go.uber.org/dig"))

	assert.Nil(t, snap.Package("example.com/shop/missing"))
}

func TestFromSources_GeneratedFiles(t *testing.T) {
	snap := loadShop(t, map[string]string{
		"store/store.go": storeSource,
		"store/autogen_typemap.go": models.GeneratedHeader + `

package store

var DecoratedTypes = map[string]string{}
`,
	})

	pkg := snap.Package("example.com/shop/store")
	require.NotNil(t, pkg)
	require.Len(t, pkg.Files, 2)
	require.Len(t, pkg.SourceFiles(), 1)
	assert.Equal(t, "store.go", pkg.SourceFiles()[0].Base())

	assert.True(t, pkg.DeclaresOutsideGenerated(snap.Fset, "Repo"))
	assert.False(t, pkg.DeclaresOutsideGenerated(snap.Fset, "DecoratedTypes"), "declared only by a generated file")
	assert.False(t, pkg.DeclaresOutsideGenerated(snap.Fset, "Missing"))
}

func TestFingerprints(t *testing.T) {
	base := map[string]string{
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	}
	first := loadShop(t, base)
	second := loadShop(t, base)
	assert.Equal(t, first.Fingerprint, second.Fingerprint, "fingerprints are a function of content")

	changed := map[string]string{
		"store/store.go": storeSource + "\nfunc Extra() {}\n",
		"app/app.go":     appSource,
	}
	third := loadShop(t, changed)
	assert.NotEqual(t, first.Fingerprint, third.Fingerprint)
	assert.NotEqual(t,
		first.Package("example.com/shop/store").Fingerprint,
		third.Package("example.com/shop/store").Fingerprint)
	assert.NotEqual(t,
		first.Package("example.com/shop/app").Fingerprint,
		third.Package("example.com/shop/app").Fingerprint,
		"importers change when a dependency changes")

	upgraded, err := FromSources(SourceConfig{
		Module:   "example.com/shop",
		Files:    base,
		Requires: []string{"go.uber.org/fx@v1.24.0"},
	})
	require.NoError(t, err)
	bumped, err := FromSources(SourceConfig{
		Module:   "example.com/shop",
		Files:    base,
		Requires: []string{"go.uber.org/fx@v1.25.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go.uber.org/fx"}, bumped.Package("example.com/shop/store").Manifest.Requires)
	assert.NotEqual(t, upgraded.Fingerprint, bumped.Fingerprint, "a require version is part of the fingerprint")
	assert.NotEqual(t,
		upgraded.Package("example.com/shop/store").Fingerprint,
		bumped.Package("example.com/shop/store").Fingerprint)
}

func TestIsGenerated(t *testing.T) {
	assert.True(t, IsGenerated([]byte(models.GeneratedHeader+"\n\npackage x\n")))
	assert.True(t, IsGenerated([]byte("\n\n"+models.GeneratedHeader+"\npackage x\n")))
	assert.False(t, IsGenerated([]byte("// Code generated by other. DO NOT EDIT.\npackage x\n")))
	assert.False(t, IsGenerated([]byte("package x\n// "+models.GeneratedHeader)))
	assert.False(t, IsGenerated(nil))
}

func TestNormalizePath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	abs := filepath.ToSlash(filepath.Join(wd, "handlers", "stats.go"))

	spellings := []string{
		"handlers/stats.go",
		"./handlers/stats.go",
		"handlers/../handlers/./stats.go",
		filepath.Join(wd, "handlers", "stats.go"),
		abs,
	}
	for _, spelling := range spellings {
		assert.Equal(t, abs, NormalizePath(spelling), spelling)
	}
	assert.Equal(t, "/src/app/main.go", NormalizePath("/src/app//sub/../main.go"))
	assert.Empty(t, NormalizePath(""))
}

func TestParseModuleFile(t *testing.T) {
	mod, err := ParseModuleFile("go.mod", []byte(`module example.com/shop

go 1.25

require (
	go.uber.org/fx v1.24.0
	github.com/gin-gonic/gin v1.11.0
)

require go.uber.org/dig v1.19.0 // indirect
`))
	require.NoError(t, err)
	assert.Equal(t, "example.com/shop", mod.Path)
	assert.Equal(t, []string{"github.com/gin-gonic/gin", "go.uber.org/dig", "go.uber.org/fx"}, mod.Requires)
	assert.Equal(t, []string{"github.com/gin-gonic/gin@v1.11.0", "go.uber.org/dig@v1.19.0", "go.uber.org/fx@v1.24.0"}, mod.Versions)

	_, err = ParseModuleFile("go.mod", []byte("go 1.25\n"))
	assert.Error(t, err)
}

func TestModuleErrorLocation(t *testing.T) {
	_, err := ParseModuleFile("/src/shop/go.mod", []byte("module example.com/shop\n\nrequire go.uber.org/fx\n"))
	require.Error(t, err)

	loc, ok := moduleErrorLocation(err)
	require.True(t, ok)
	assert.Equal(t, "/src/shop/go.mod", loc.File)
	assert.Equal(t, 3, loc.Line)

	_, ok = moduleErrorLocation(os.ErrNotExist)
	assert.False(t, ok)
}

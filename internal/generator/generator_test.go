package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/pipeline"
	"github.com/toyz/tracegen/internal/store"
	"github.com/toyz/tracegen/internal/synth"
	"github.com/toyz/tracegen/internal/testutil"
)

const storeSource = `package store

import "context"

type Record struct{ ID string }

type Provider interface {
	Get(ctx context.Context, id string) (*Record, error)
}

type Repo[T any] interface {
	Load(id string) (T, error)
}

type memRepo struct{}

func (memRepo) Load(id string) (int, error) { return 0, nil }

var _ Repo[int] = memRepo{}

type Counter struct{ n int }

func (c *Counter) Inc() { c.n++ }
`

const appSource = `package app

import (
	"context"

	"github.com/toyz/tracegen/store"
)

func Run(p store.Provider, c *store.Counter) error {
	c.Inc()
	_, err := p.Get(context.Background(), "a")
	return err
}
`

func program() map[string]string {
	return map[string]string{
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	}
}

func newGenerator(t *testing.T, opts Options) *Generator {
	t.Helper()
	s, err := store.NewMemStorage(8 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewGenerator(pipeline.NewGraph(s), opts)
}

func filesIn(units []*models.Unit, dir string) []string {
	var names []string
	for _, u := range units {
		if u.Dir == testutil.Root+"/"+dir {
			names = append(names, u.FileName())
		}
	}
	return names
}

func TestGenerate_Units(t *testing.T) {
	g := newGenerator(t, Options{})
	res, err := g.Generate(testutil.Load(t, program()))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"autogen_decorated_provider.go",
		"autogen_decorated_repo.go",
		"autogen_decorated_types.go",
		"autogen_default_tracer.go",
	}, filesIn(res.Units, "store"))
	assert.Empty(t, filesIn(res.Units, "app"), "interception is opt-in")

	var typemapSrc, tracerSrc string
	for _, u := range res.Units {
		switch u.Kind {
		case models.UnitTypeMap:
			typemapSrc = string(u.Content)
		case models.UnitDefaultSource:
			tracerSrc = string(u.Content)
		}
	}
	assert.Contains(t, typemapSrc, `"github.com/toyz/tracegen/store.Repo[int]"`)
	assert.Contains(t, typemapSrc, `"github.com/toyz/tracegen/store.DecoratedRepo[int]"`)
	assert.Contains(t, tracerSrc, `telemetry.NewSource("github.com/toyz/tracegen", "v1.0.0")`)
}

func TestGenerate_InterfaceNamedTypes(t *testing.T) {
	files := program()
	files["store/types.go"] = "package store\n\ntype Types interface {\n\tCount() int\n}\n"

	g := newGenerator(t, Options{})
	res, err := g.Generate(testutil.Load(t, files))
	require.NoError(t, err)

	var typeMaps int
	for _, u := range res.Units {
		if u.FileName() == "autogen_decorated_types.go" {
			typeMaps++
			assert.Equal(t, models.UnitTypeMap, u.Kind)
			assert.NotContains(t, string(u.Content), "NewDecoratedTypes")
		}
	}
	assert.Equal(t, 1, typeMaps, "the type map keeps its file")

	var collisions []string
	for _, d := range res.Diagnostics {
		if d.Code == models.DiagNameCollision {
			collisions = append(collisions, d.Message)
		}
	}
	require.Len(t, collisions, 1)
	assert.Contains(t, collisions[0], "Types")
}

func TestGenerate_OutputCompiles(t *testing.T) {
	g := newGenerator(t, Options{Intercept: true})
	res, err := g.Generate(testutil.Load(t, program()))
	require.NoError(t, err)

	files := program()
	for _, u := range res.Units {
		if u.Kind == models.UnitInterceptor {
			continue
		}
		dir := strings.TrimPrefix(u.Dir, testutil.Root+"/")
		files[dir+"/"+u.FileName()] = string(u.Content)
	}
	testutil.Load(t, files)
}

func TestGenerate_Idempotent(t *testing.T) {
	g := newGenerator(t, Options{Intercept: true})

	first, err := g.Generate(testutil.Load(t, program()))
	require.NoError(t, err)
	second, err := g.Generate(testutil.Load(t, program()))
	require.NoError(t, err)

	require.Len(t, second.Units, len(first.Units))
	for i := range first.Units {
		assert.Equal(t, first.Units[i].Content, second.Units[i].Content)
	}
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
	assert.Equal(t, pipeline.StageStats{Hits: 1, Misses: 1}, g.Stats()[StagePass])
	assert.Equal(t, 3, g.Stats()[StageScan].Misses, "the second pass never reaches the scan stage")
}

func TestGenerate_Incremental(t *testing.T) {
	g := newGenerator(t, Options{})
	_, err := g.Generate(testutil.Load(t, program()))
	require.NoError(t, err)
	g.graph.ResetStats()

	files := program()
	files["app/app.go"] = strings.Replace(appSource, "func Run", "// Run does work.\nfunc Run", 1)
	_, err = g.Generate(testutil.Load(t, files))
	require.NoError(t, err)

	stats := g.Stats()
	assert.Equal(t, pipeline.StageStats{Misses: 1}, stats[StagePass])
	assert.Equal(t, pipeline.StageStats{Hits: 2, Misses: 1}, stats[StageScan], "only the edited file is rescanned")
	assert.Equal(t, pipeline.StageStats{Hits: 2, Misses: 1}, stats[StageResolve])
	assert.Equal(t, pipeline.StageStats{Hits: 2, Misses: 1}, stats[StagePackage])
}

func TestGenerate_CacheDoesNotChangeOutput(t *testing.T) {
	snap := testutil.Load(t, program())
	cached, err := newGenerator(t, Options{Intercept: true}).Generate(snap)
	require.NoError(t, err)
	uncached, err := NewGenerator(nil, Options{Intercept: true}).Generate(snap)
	require.NoError(t, err)

	require.Len(t, uncached.Units, len(cached.Units))
	for i := range cached.Units {
		assert.Equal(t, cached.Units[i].FileName(), uncached.Units[i].FileName())
		assert.Equal(t, cached.Units[i].Content, uncached.Units[i].Content)
	}
}

func TestGenerate_Intercept(t *testing.T) {
	g := newGenerator(t, Options{Intercept: true})
	res, err := g.Generate(testutil.Load(t, program()))
	require.NoError(t, err)

	var interceptors []string
	for _, u := range res.Units {
		if u.Kind == models.UnitInterceptor {
			interceptors = append(interceptors, u.Hint)
			assert.Equal(t, testutil.Path("app"), u.Package)
		}
	}
	assert.Equal(t, []string{"interceptCounterIncForRun_L10_C4", "interceptProviderGetForRun_L11_C14"}, interceptors)
	assert.Contains(t, filesIn(res.Units, "app"), "autogen_default_tracer.go")
}

func TestGenerate_Exclude(t *testing.T) {
	for _, pattern := range []string{"store", "github.com/toyz/tracegen/store", "store/...", "st*"} {
		g := newGenerator(t, Options{Exclude: []string{pattern}})
		res, err := g.Generate(testutil.Load(t, program()))
		require.NoError(t, err)
		assert.Empty(t, filesIn(res.Units, "store"), pattern)
	}
}

func TestExcluded(t *testing.T) {
	const module = "github.com/toyz/tracegen"
	assert.True(t, Excluded(module, module+"/store/mocks", []string{"store/..."}))
	assert.True(t, Excluded(module, module+"/store", []string{"app", "store"}))
	assert.False(t, Excluded(module, module+"/storage", []string{"store"}))
	assert.False(t, Excluded(module, module+"/store", nil))
}

func TestGenerate_InvalidHooks(t *testing.T) {
	g := newGenerator(t, Options{Hooks: synth.Hooks{Before: "{{.Ctx"}})
	_, err := g.Generate(testutil.Load(t, program()))
	assert.Error(t, err)

	_, err = g.Generate(nil)
	assert.Error(t, err)
}

func TestSortUnits(t *testing.T) {
	units := []*models.Unit{
		{Dir: "/b", Hint: "A"},
		{Dir: "/a", Hint: "Zed"},
		{Dir: "/a", Hint: "Alpha"},
	}
	SortUnits(units)
	assert.Equal(t, "/a", units[0].Dir)
	assert.Equal(t, "Alpha", units[0].Hint)
	assert.Equal(t, "Zed", units[1].Hint)
	assert.Equal(t, "/b", units[2].Dir)
}

package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/resolver"
	"github.com/toyz/tracegen/internal/snapshot"
	"github.com/toyz/tracegen/internal/testutil"
)

const statsSource = `package stats

import (
	"context"
	"io"

	"github.com/toyz/tracegen/pkg/telemetry"
)

var DefaultTracer = telemetry.NewSource("stats", "v1")

type Record struct{ Name string }

type Provider interface {
	Get(ctx context.Context, user string) (*Record, error)
	Refresh(context.Context) error
	Len() int
	Reset()
	Tags(prefix string, _ int, names ...string) (map[string]int, bool, error)
	Watch() <-chan Record
	//tracegen:skip
	Ping() bool
	io.Closer
}

type Repo[K comparable, V any] interface {
	Load(ctx context.Context, key K) (V, error)
	Store(key K, value V)
}
`

func program() map[string]string {
	return map[string]string{"stats/stats.go": statsSource}
}

func load(t *testing.T, files map[string]string) *snapshot.Snapshot {
	t.Helper()
	return testutil.Load(t, files)
}

func resolveStats(t *testing.T, snap *snapshot.Snapshot) *resolver.PackageModel {
	t.Helper()
	model := testutil.Resolve(t, snap)[testutil.Path("stats")]
	require.NotNil(t, model)
	return model
}

func synthesizeAll(t *testing.T, model *resolver.PackageModel) []*models.Unit {
	t.Helper()
	s := New(Hooks{})
	var units []*models.Unit
	for _, iface := range model.Interfaces {
		unit, diags, err := s.Synthesize(iface, model.Declared)
		require.NoError(t, err)
		assert.Empty(t, diags)
		require.NotNil(t, unit, iface.Name)
		units = append(units, unit)
	}
	return units
}

func TestSynthesize_CompilesAgainstRuntime(t *testing.T) {
	snap := load(t, program())
	units := synthesizeAll(t, resolveStats(t, snap))
	require.Len(t, units, 2)

	files := program()
	for _, u := range units {
		files["stats/"+u.FileName()] = string(u.Content)
	}
	regenerated := load(t, files)

	pkg := regenerated.Package("github.com/toyz/tracegen/stats")
	assert.Len(t, pkg.Files, 3)
	assert.Len(t, pkg.SourceFiles(), 1, "generated files are excluded from analysis")
}

func TestSynthesize_Provider(t *testing.T) {
	units := synthesizeAll(t, resolveStats(t, load(t, program())))
	unit := units[0]

	assert.Equal(t, models.UnitDecorator, unit.Kind)
	assert.Equal(t, "DecoratedProvider", unit.Hint)
	assert.Equal(t, "autogen_decorated_provider.go", unit.FileName())
	assert.Equal(t, "github.com/toyz/tracegen/stats", unit.Package)

	src := string(unit.Content)
	assert.True(t, strings.HasPrefix(src, models.GeneratedHeader))
	for _, want := range []string{
		"type DecoratedProvider struct {",
		"func NewDecoratedProvider(base Provider) *DecoratedProvider {",
		"baseType: reflect.TypeOf(base)",
		"var _ Provider = (*DecoratedProvider)(nil)",
		"func (d *DecoratedProvider) Get(ctx context.Context, user string) (*Record, error) {",
		"ctx, span := DefaultTracer.Start(ctx, ",
		"r0, err := d.base.Get(ctx, user)",
		"return r0, err",
		"func (d *DecoratedProvider) Refresh(p0 context.Context) error {",
		"p0, span := DefaultTracer.Start(p0, ",
		"err := d.base.Refresh(p0)",
		"span := DefaultTracer.StartDetached(",
		"return d.base.Len()",
		"\td.base.Reset()\n",
		"func (d *DecoratedProvider) Tags(prefix string, p1 int, names ...string) (map[string]int, bool, error) {",
		"r0, r1, err := d.base.Tags(prefix, p1, names...)",
		"return d.base.Watch()",
		"func (d *DecoratedProvider) Ping() bool {\n\treturn d.base.Ping()\n}",
		"func (d *DecoratedProvider) Close() error {\n\treturn d.base.Close()\n}",
		"err := telemetry.Recovered(r)",
		"span.Fail(err)",
		"panic(r)",
	} {
		assert.Contains(t, src, want)
	}
	assert.Contains(t, src, `telemetry.TypeName(d.baseType)`)
	assert.Contains(t, src, `".Get"`)
	assert.Equal(t, 6, strings.Count(src, "span.End()"), "one deferred after hook per instrumented method")
	assert.NotContains(t, src, `".Ping"`, "skipped methods are not instrumented")
}

func TestSynthesize_Generic(t *testing.T) {
	units := synthesizeAll(t, resolveStats(t, load(t, program())))
	src := string(units[1].Content)

	assert.Equal(t, "DecoratedRepo", units[1].Hint)
	assert.Contains(t, src, "type DecoratedRepo[K comparable, V any] struct {")
	assert.Contains(t, src, "base     Repo[K, V]")
	assert.Contains(t, src, "func NewDecoratedRepo[K comparable, V any](base Repo[K, V]) *DecoratedRepo[K, V] {")
	assert.Contains(t, src, "func (d *DecoratedRepo[K, V]) Load(ctx context.Context, key K) (V, error) {")
	assert.Contains(t, src, "func (d *DecoratedRepo[K, V]) Store(key K, value V) {")
	assert.NotContains(t, src, "var _ Repo")
}

func TestSynthesize_Deterministic(t *testing.T) {
	first := synthesizeAll(t, resolveStats(t, load(t, program())))
	second := synthesizeAll(t, resolveStats(t, load(t, program())))
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}

func TestSynthesize_NameCollision(t *testing.T) {
	files := program()
	files["stats/custom.go"] = "package stats\n\ntype DecoratedProvider struct{}\n"
	model := resolveStats(t, load(t, files))

	unit, diags, err := New(Hooks{}).Synthesize(model.Interfaces[0], model.Declared)
	require.NoError(t, err)
	assert.Nil(t, unit)
	require.Len(t, diags, 1)
	assert.Equal(t, models.DiagNameCollision, diags[0].Code)
}

func TestSynthesize_SkipAndUnsupported(t *testing.T) {
	s := New(Hooks{})
	unit, diags, err := s.Synthesize(models.InterfaceDescriptor{Name: "Quiet", Skip: true}, nil)
	assert.NoError(t, err)
	assert.Nil(t, unit)
	assert.Empty(t, diags)

	unit, _, err = s.Synthesize(models.InterfaceDescriptor{Name: "Odd", Unsupported: "embedded method"}, nil)
	assert.NoError(t, err)
	assert.Nil(t, unit)
}

func TestSynthesize_CustomHooks(t *testing.T) {
	model := resolveStats(t, load(t, program()))
	s := New(Hooks{After: "span.End() // closed"})

	unit, _, err := s.Synthesize(model.Interfaces[0], model.Declared)
	require.NoError(t, err)
	assert.Contains(t, string(unit.Content), "span.End() // closed")
	assert.Contains(t, string(unit.Content), "span.Fail(err)", "unset hooks keep their defaults")

	_, _, err = New(Hooks{Before: "{{.Ctx"}).Synthesize(model.Interfaces[0], model.Declared)
	assert.Error(t, err)
}

func TestHooks(t *testing.T) {
	assert.Equal(t, DefaultHooks(), Hooks{}.WithDefaults())
	assert.NoError(t, DefaultHooks().Validate())
	assert.Error(t, Hooks{OnError: "{{if}}"}.Validate())

	rendered, err := DefaultHooks().render("ctx", `"name"`)
	require.NoError(t, err)
	assert.Equal(t, `ctx, span := DefaultTracer.Start(ctx, "name")`, rendered.before)
	assert.Equal(t, "span.Fail(err)", rendered.onError)

	rendered, err = DefaultHooks().render("", `"name"`)
	require.NoError(t, err)
	assert.Equal(t, `span := DefaultTracer.StartDetached("name")`, rendered.before)
}

func TestSafeParams(t *testing.T) {
	typ := models.TypeRef{Expr: "int"}
	params := []models.Param{
		{Name: "", Type: typ},
		{Name: "_", Type: typ},
		{Name: "span", Type: typ},
		{Name: "r0", Type: typ},
		{Name: "p4", Type: typ},
		{Name: "count", Type: typ},
		{Name: "count", Type: typ},
	}
	got := SafeParams(params, ReservedNames(nil))
	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4", "count", "p6"}, names)

	reserved := ReservedNames([]string{"T"}, []models.TypeRef{{Expr: "x", Imports: []models.Import{{Path: "example.com/store", Name: "store"}}}})
	assert.True(t, reserved["T"])
	assert.True(t, reserved["store"])
	assert.True(t, reserved["DefaultTracer"])
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "DecoratedStatsProvider", TypeName("Stats_Provider"))
	assert.Equal(t, "NewDecoratedRepo", Constructor("Repo"))
}

func TestSynthesize_TypeMapNameReserved(t *testing.T) {
	for _, name := range []string{"Types", "Ty_pes"} {
		unit, diags, err := New(Hooks{}).Synthesize(models.InterfaceDescriptor{
			ID:   "github.com/toyz/tracegen/stats." + name,
			Name: name,
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, unit, name)
		require.Len(t, diags, 1)
		assert.Equal(t, models.DiagNameCollision, diags[0].Code)
		assert.Contains(t, diags[0].Message, "reserved for the type map")
	}
}

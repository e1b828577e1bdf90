package resolver

import (
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/scanner"
	"github.com/toyz/tracegen/internal/snapshot"
)

const storeSource = `package store

import "context"

type Repo[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, id string, v T) error
}

type Events interface {
	Stream() <-chan string
	Close()
}

type Counter struct{ n int }

func (c *Counter) Inc()      { c.n++ }
func (c Counter) Value() int { return c.n }

type mem[T any] struct{}

func (m *mem[T]) Get(ctx context.Context, id string) (T, error) { var z T; return z, nil }
func (m *mem[T]) Put(ctx context.Context, id string, v T) error { return nil }

var _ Repo[int] = (*mem[int])(nil)
`

const appSource = `package app

import (
	"context"

	"example.com/shop/store"
)

func Run(r store.Repo[int], c store.Counter) int {
	v, _ := r.Get(context.Background(), "a")
	c.Inc()
	return v + c.Value()
}
`

func resolveShop(t *testing.T, files map[string]string, pkgPath string) *PackageModel {
	t.Helper()
	snap, err := snapshot.FromSources(snapshot.SourceConfig{Module: "example.com/shop", Files: files})
	require.NoError(t, err)
	require.Empty(t, snap.TypeErrors())

	known := make(map[string]bool)
	for _, p := range snap.Packages {
		known[p.Path] = true
	}
	pkg := snap.Package(pkgPath)
	require.NotNil(t, pkg)

	var scanned []scanner.FileCandidates
	for _, f := range pkg.SourceFiles() {
		scanned = append(scanned, scanner.ScanFile(snap.Fset, f.Path, f.Syntax))
	}
	return Resolve(snap, pkg, scanned, known)
}

func shopFiles() map[string]string {
	return map[string]string{
		"store/store.go": storeSource,
		"app/app.go":     appSource,
	}
}

func TestResolve_Interfaces(t *testing.T) {
	model := resolveShop(t, shopFiles(), "example.com/shop/store")
	require.Len(t, model.Interfaces, 2)

	repo := model.Interfaces[0]
	assert.Equal(t, "example.com/shop/store.Repo[1]", repo.ID)
	assert.True(t, repo.Generic())
	require.Len(t, repo.TypeParams, 1)
	assert.Equal(t, "T", repo.TypeParams[0].Name)
	assert.Equal(t, "any", repo.TypeParams[0].Constraint.Expr)
	require.Len(t, repo.Methods, 2)

	get := repo.Methods[0]
	assert.Equal(t, "Get", get.Name)
	assert.Equal(t, models.ShapeGenericTask, get.Shape)
	assert.Equal(t, 0, get.ContextParam)
	assert.Equal(t, "\x00context\x00.Context", get.Params[0].Type.Expr)
	assert.Equal(t, []models.Import{{Path: "context", Name: "context"}}, get.Params[0].Type.Imports)
	assert.Equal(t, "T", get.Results[0].Expr)
	assert.Equal(t, models.ShapeTask, repo.Methods[1].Shape)

	events := model.Interfaces[1]
	assert.Equal(t, "example.com/shop/store.Events", events.ID)
	assert.Equal(t, models.ShapeValue, events.Methods[0].Shape)
	assert.Equal(t, models.ShapeVoid, events.Methods[1].Shape)
	assert.Equal(t, -1, events.Methods[1].ContextParam)

	require.Len(t, model.Diagnostics, 1, "the channel result is reported once")
	assert.Equal(t, models.DiagUnclassifiedShape, model.Diagnostics[0].Code)
	assert.Equal(t, models.SeverityWarning, model.Diagnostics[0].Severity)
}

func TestResolve_MembersAndImplementations(t *testing.T) {
	model := resolveShop(t, shopFiles(), "example.com/shop/store")

	assert.Equal(t, []string{
		"example.com/shop/store.Counter.Inc",
		"example.com/shop/store.Counter.Value",
		"example.com/shop/store.Events.Close",
		"example.com/shop/store.Events.Stream",
		"example.com/shop/store.Repo[1].Get",
		"example.com/shop/store.Repo[1].Put",
	}, model.Members, "methods of unexported types are not tracked")

	require.Len(t, model.Implementations, 1)
	impl := model.Implementations[0]
	assert.Equal(t, "example.com/shop/store.Repo[1]", impl.Interface)
	assert.Equal(t, "*example.com/shop/store.mem[int]", impl.Type)
	assert.Equal(t, []string{"int"}, impl.DisplayArgs)
	assert.Equal(t, "int", impl.TypeArgs[0].Expr)
}

func TestResolve_Calls(t *testing.T) {
	model := resolveShop(t, shopFiles(), "example.com/shop/app")
	require.Len(t, model.Calls, 3, "context.Background is a qualified function, not a member call")

	get := model.Calls[0]
	assert.Equal(t, "Get", get.Method)
	assert.Equal(t, "Repo", get.Container)
	assert.Equal(t, "Run", get.Caller)
	assert.Equal(t, "example.com/shop/store.Repo[1].Get", get.TargetOrigin)
	assert.Equal(t, models.ShapeGenericTask, get.Shape)
	assert.Equal(t, "int", get.Results[0].Expr, "results are instantiated")
	assert.False(t, get.AddrOf)
	assert.Empty(t, get.Unsupported)
	assert.Equal(t, 10, get.Location.Line)
	assert.Equal(t, 12, get.Location.Column)

	inc := model.Calls[1]
	assert.Equal(t, "Inc", inc.Method)
	assert.True(t, inc.AddrOf, "pointer method on an addressable value")
	assert.Equal(t, "*\x00example.com/shop/store\x00.Counter", inc.Receiver.Expr)
	assert.Equal(t, "example.com/shop/store.Counter.Inc", inc.Target)
	assert.Equal(t, models.ShapeVoid, inc.Shape)

	value := model.Calls[2]
	assert.False(t, value.AddrOf)
	assert.Equal(t, "\x00example.com/shop/store\x00.Counter", value.Receiver.Expr)
	assert.Equal(t, models.ShapeValue, value.Shape)

	assert.Equal(t, []string{"Run"}, model.Declared)
	assert.False(t, model.HasDefaultSource)
}

func TestResolve_SkipAndDefaultSource(t *testing.T) {
	files := map[string]string{
		"svc/svc.go": `package svc

//tracegen:skip
type Quiet interface{ Ping() }

type Loud interface {
	Ping()
	//tracegen:skip
	Health() bool
}

var DefaultTracer = 1
`,
	}
	model := resolveShop(t, files, "example.com/shop/svc")
	require.Len(t, model.Interfaces, 2)

	assert.True(t, model.Interfaces[0].Skip)
	assert.False(t, model.Interfaces[1].Skip)
	assert.False(t, model.Interfaces[1].Methods[0].Skip)
	assert.True(t, model.Interfaces[1].Methods[1].Skip)
	assert.True(t, model.HasDefaultSource)
	assert.True(t, model.Declares("Loud"))
	assert.False(t, model.Declares("DecoratedLoud"))
}

func TestResolve_EmbeddedMethods(t *testing.T) {
	files := map[string]string{
		"svc/svc.go": `package svc

import "io"

type Store interface {
	io.Closer
	Name() string
}
`,
	}
	model := resolveShop(t, files, "example.com/shop/svc")
	require.Len(t, model.Interfaces, 1)
	iface := model.Interfaces[0]
	require.Len(t, iface.Methods, 1)
	require.Len(t, iface.Embedded, 1)
	assert.Equal(t, "Close", iface.Embedded[0].Name)
	assert.Equal(t, models.ShapeTask, iface.Embedded[0].Shape)
	assert.Empty(t, iface.Unsupported)
}

func TestResolve_UnsupportedCalls(t *testing.T) {
	files := map[string]string{
		"store/store.go": `package store

type Pair struct{}

func (Pair) Sum(a, b int) int { return a + b }
`,
		"app/app.go": `package app

import "example.com/shop/store"

func two() (int, int) { return 1, 2 }

func Use(p store.Pair) int {
	return p.Sum(two())
}

func Local() int {
	type inner struct{ store.Pair }
	var v inner
	return v.Sum(1, 2)
}
`,
	}
	model := resolveShop(t, files, "example.com/shop/app")
	require.Len(t, model.Calls, 2)
	assert.Contains(t, model.Calls[0].Unsupported, models.DiagMultiValueArgument)
	assert.Contains(t, model.Calls[1].Unsupported, models.DiagUnnameableType)
	assert.Equal(t, "example.com/shop/store.Pair.Sum", model.Calls[1].Target)
}

func TestTypeID(t *testing.T) {
	pkg := types.NewPackage("example.com/kv", "kv")
	tparam := types.NewTypeParam(types.NewTypeName(token.NoPos, pkg, "T", nil), types.Universe.Lookup("any").Type())
	obj := types.NewTypeName(token.NoPos, pkg, "Repo", nil)
	generic := types.NewNamed(obj, nil, nil)
	generic.SetTypeParams([]*types.TypeParam{tparam})
	generic.SetUnderlying(types.NewInterfaceType(nil, nil))

	assert.Equal(t, "example.com/kv.Repo[1]", TypeID(generic))

	inst, err := types.Instantiate(nil, generic, []types.Type{types.Typ[types.String]}, false)
	require.NoError(t, err)
	assert.Equal(t, "example.com/kv.Repo[string]", TypeID(inst.(*types.Named)))

	plain := types.NewNamed(types.NewTypeName(token.NoPos, pkg, "Cache", nil), types.NewStruct(nil, nil), nil)
	assert.Equal(t, "example.com/kv.Cache", TypeID(plain))
}

func TestClassify(t *testing.T) {
	errT := types.Universe.Lookup("error").Type()
	tuple := func(ts ...types.Type) *types.Tuple {
		vars := make([]*types.Var, len(ts))
		for i, t := range ts {
			vars[i] = types.NewVar(token.NoPos, nil, "", t)
		}
		return types.NewTuple(vars...)
	}
	sig := func(results *types.Tuple) *types.Signature {
		return types.NewSignatureType(nil, nil, nil, nil, results, false)
	}

	tests := []struct {
		name    string
		results *types.Tuple
		shape   models.MethodShape
		gap     bool
	}{
		{"void", tuple(), models.ShapeVoid, false},
		{"task", tuple(errT), models.ShapeTask, false},
		{"generic task", tuple(types.Typ[types.Int], errT), models.ShapeGenericTask, false},
		{"multi generic task", tuple(types.Typ[types.Int], types.Typ[types.String], errT), models.ShapeGenericTask, false},
		{"value", tuple(types.Typ[types.Int]), models.ShapeValue, false},
		{"error first", tuple(errT, types.Typ[types.Int]), models.ShapeValue, false},
		{"channel", tuple(types.NewChan(types.RecvOnly, types.Typ[types.Int])), models.ShapeValue, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, gap := Classify(sig(tt.results))
			assert.Equal(t, tt.shape, shape)
			assert.Equal(t, tt.gap, gap)
		})
	}
}

func TestRenderer(t *testing.T) {
	dest := types.NewPackage("example.com/app", "app")
	other := types.NewPackage("example.com/lib", "lib")

	exported := types.NewNamed(types.NewTypeName(token.NoPos, other, "Item", nil), types.NewStruct(nil, nil), nil)
	ref, err := NewRenderer(dest, false).Type(types.NewSlice(types.NewPointer(exported)))
	require.NoError(t, err)
	assert.Equal(t, "[]*\x00example.com/lib\x00.Item", ref.Expr)
	assert.Equal(t, []models.Import{{Path: "example.com/lib", Name: "lib"}}, ref.Imports)
	assert.Equal(t, "[]*lib2.Item", ExpandImports(ref.Expr, func(string) string { return "lib2" }))

	hidden := types.NewNamed(types.NewTypeName(token.NoPos, other, "item", nil), types.NewStruct(nil, nil), nil)
	_, err = NewRenderer(dest, false).Type(hidden)
	assert.Error(t, err)

	local := types.NewNamed(types.NewTypeName(token.NoPos, dest, "item", nil), types.NewStruct(nil, nil), nil)
	ref, err = NewRenderer(dest, false).Type(local)
	require.NoError(t, err)
	assert.Equal(t, "item", ref.Expr)
	assert.Empty(t, ref.Imports)

	tp := types.NewTypeParam(types.NewTypeName(token.NoPos, dest, "T", nil), types.Universe.Lookup("any").Type())
	_, err = NewRenderer(dest, false).Type(tp)
	assert.Error(t, err)
	ref, err = NewRenderer(dest, true).Type(tp)
	require.NoError(t, err)
	assert.Equal(t, "T", ref.Expr)

	assert.Equal(t, "[]*example.com/lib.Item", Display(types.NewSlice(types.NewPointer(exported))))
	assert.Equal(t, "\x00example.com/lib\x00.Item", QualifiedRef("example.com/lib", "Item"))
}

package scanner

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `package stats

import "context"

// Provider fetches statistics.
type Provider interface {
	Get(ctx context.Context, user string) (int, error)
}

//tracegen:skip
type Internal interface{ Ping() }

type hidden interface{ Run() }

type Alias = Provider

type (
	Typed[T any] interface{ Fetch() T }
	Counter      struct{ n int }
)

var _ Provider = (*api)(nil)
var _, _ Typed[int] = intTyped{}, intTyped{}
var notBlank Provider = (*api)(nil)

var global = helper().Value()

type api struct{}

func (a *api) Get(ctx context.Context, user string) (int, error) { return len(user), nil }
func (a *api) internal()                                          {}

func (c *Counter) Inc() { c.n++ }

func (h *Handler[T]) Serve(p Provider) {
	p.Get(context.Background(), "a")
	func() {
		p.Get(context.TODO(), "b")
	}()
}

func init() { helper() }
`

func scan(t *testing.T) FileCandidates {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "/src/stats/stats_handler.go", sample, parser.ParseComments)
	require.NoError(t, err)
	return ScanFile(fset, "/src/stats/stats_handler.go", file)
}

func byKind(fc FileCandidates, k Kind) []Candidate {
	var out []Candidate
	for _, c := range fc.Candidates {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

func TestScanFile_Interfaces(t *testing.T) {
	fc := scan(t)
	ifaces := byKind(fc, KindInterface)
	require.Len(t, ifaces, 3)

	assert.Equal(t, "Provider", ifaces[0].Name)
	assert.False(t, ifaces[0].Skip)
	assert.Equal(t, "Internal", ifaces[1].Name)
	assert.True(t, ifaces[1].Skip)
	assert.Equal(t, "Typed", ifaces[2].Name)

	assert.Equal(t, "Provider", sample[ifaces[0].Pos:ifaces[0].End])
}

func TestScanFile_Assertions(t *testing.T) {
	fc := scan(t)
	asserts := byKind(fc, KindAssertion)
	require.Len(t, asserts, 3, "one candidate per asserted value, named variables excluded")

	assert.Equal(t, "Provider", asserts[0].Name)
	assert.Equal(t, "(*api)(nil)", sample[asserts[0].Aux:asserts[0].AuxEnd])
	assert.Equal(t, "Typed[int]", sample[asserts[1].Pos:asserts[1].End])
	assert.Equal(t, "intTyped{}", sample[asserts[2].Aux:asserts[2].AuxEnd])
}

func TestScanFile_Methods(t *testing.T) {
	fc := scan(t)
	var names []string
	for _, c := range byKind(fc, KindMethod) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Get", "Inc", "Serve"}, names)
}

func TestScanFile_Calls(t *testing.T) {
	fc := scan(t)
	calls := byKind(fc, KindCall)

	var got []string
	for _, c := range calls {
		got = append(got, c.Caller+":"+sample[c.Aux:c.AuxEnd])
	}
	assert.Equal(t, []string{
		"global:helper().Value()",
		"HandlerServe:p.Get(context.Background(), \"a\")",
		"HandlerServe:context.Background()",
		"HandlerServe:p.Get(context.TODO(), \"b\")",
		"HandlerServe:context.TODO()",
	}, got, "bare calls such as helper() are not candidates")

	assert.Equal(t, "Get", sample[calls[1].Pos:calls[1].End])
	assert.Equal(t, 5, fc.Count(KindCall))
}

func TestScanFile_BlankVarCaller(t *testing.T) {
	const src = `package stats

var _ = registry.Lookup("a")
`
	var callers []string
	for _, name := range []string{"/src/stats/users.go", "/src/stats/orders.go"} {
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, name, src, parser.ParseComments)
		require.NoError(t, err)
		calls := byKind(ScanFile(fset, name, file), KindCall)
		require.Len(t, calls, 1)
		callers = append(callers, calls[0].Caller)
	}
	assert.Equal(t, []string{"varUsers", "varOrders"}, callers, "blank declarations in different files get distinct callers")
}

func TestFileStem(t *testing.T) {
	assert.Equal(t, "StatsHandler", fileStem("/src/stats/stats_handler.go"))
	assert.Equal(t, "Main", fileStem(`C:\src\main.go`))
	assert.Equal(t, "ApiV2", fileStem("api-v2.go"))
}

package synth

import (
	"strconv"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/templates"
)

// bodyLocals are declared by the instrumentation template inside a function body
var bodyLocals = []string{"d", "span", "err", "r", "source"}

// reservedLocals are the identifiers a parameter must not shadow
var reservedLocals = append([]string{"DefaultTracer", "telemetry", "reflect"}, bodyLocals...)

// Call is one invocation wrapped by the instrumentation template
type Call struct {
	Doc          string
	Directive    string
	Receiver     string // "(d *DecoratedX) ", empty for free functions
	Name         string
	Leading      []models.Param // parameters placed before the forwarded ones, not forwarded
	Params       []models.Param
	Results      []models.TypeRef
	Variadic     bool
	Shape        models.MethodShape
	ContextParam int
	Target       string // callee expression, e.g. d.base.Get
	SpanName     string // Go string expression naming the span
	Instrumented bool
}

// Instrument renders c through the method template
func Instrument(c Call, hooks Hooks) (string, error) {
	tu := templates.DefaultTemplateUtils
	params := append(append([]models.Param(nil), c.Leading...), c.Params...)

	data := templates.MethodData{
		Doc:          c.Doc,
		Directive:    c.Directive,
		Receiver:     c.Receiver,
		Name:         c.Name,
		Params:       tu.ParamList(params, c.Variadic),
		Results:      tu.ResultList(c.Results),
		Call:         c.Target + "(" + tu.ArgList(c.Params, c.Variadic) + ")",
		Returns:      c.Shape.Returns(),
		Instrumented: c.Instrumented,
		Shape:        c.Shape.String(),
		ResultVars:   tu.ResultVars(c.Results),
		Recovered:    templates.Qualified(templates.TelemetryPackage, "Recovered"),
	}

	if c.Instrumented {
		ctx := ""
		if c.ContextParam >= 0 && c.ContextParam < len(c.Params) {
			ctx = c.Params[c.ContextParam].Name
		}
		rendered, err := hooks.render(ctx, c.SpanName)
		if err != nil {
			return "", err
		}
		data.Before = rendered.before
		data.OnError = rendered.onError
		data.After = rendered.after
	}

	return templates.GenerateMethod(data)
}

// SafeParams renames parameters that are blank, unnamed, duplicated or that
// would shadow an identifier the generated body relies on. Renamed parameters
// become p<index>.
func SafeParams(params []models.Param, reserved map[string]bool) []models.Param {
	out := make([]models.Param, len(params))
	used := make(map[string]bool, len(params))
	for _, p := range params {
		used[p.Name] = true
	}
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" || name == "_" || reserved[name] || seen[name] || isResultVar(name) {
			name = "p" + strconv.Itoa(i)
			for n := 1; used[name] || seen[name] || reserved[name]; n++ {
				name = "p" + strconv.Itoa(i) + "_" + strconv.Itoa(n)
			}
		}
		seen[name] = true
		out[i] = models.Param{Name: name, Type: p.Type}
	}
	return out
}

// ReservedNames builds the set of identifiers parameters may not use
func ReservedNames(extra []string, refs ...[]models.TypeRef) map[string]bool {
	reserved := make(map[string]bool)
	for _, n := range reservedLocals {
		reserved[n] = true
	}
	for _, n := range extra {
		reserved[n] = true
	}
	for _, list := range refs {
		for _, ref := range list {
			for _, imp := range ref.Imports {
				reserved[imp.Name] = true
			}
		}
	}
	return reserved
}

// isResultVar matches the r0, r1, ... locals of the GenericTask body
func isResultVar(name string) bool {
	if len(name) < 2 || name[0] != 'r' {
		return false
	}
	_, err := strconv.Atoi(name[1:])
	return err == nil
}

// paramTypes lists the types of params
func paramTypes(params []models.Param) []models.TypeRef {
	refs := make([]models.TypeRef, len(params))
	for i, p := range params {
		refs[i] = p.Type
	}
	return refs
}

// Package intercept generates call-site interceptors: one replacement function
// per tracked method call, bound to that call by its exact source location.
package intercept

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/toyz/tracegen/internal/annotations"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/synth"
	"github.com/toyz/tracegen/internal/templates"
)

// SpanPrefix starts the span name of every intercepted call
const SpanPrefix = "Intercepted"

// Generator turns tracked call sites into interceptor units
type Generator struct {
	hooks synth.Hooks
}

// New creates a generator using hooks, with empty hooks taken from the defaults
func New(hooks synth.Hooks) *Generator {
	return &Generator{hooks: hooks.WithDefaults()}
}

// Select returns the call sites whose target, or its generic origin, is a
// tracked member. Both identities are checked.
func Select(calls []models.CallSiteDescriptor, tracked map[string]bool) []models.CallSiteDescriptor {
	var out []models.CallSiteDescriptor
	for _, c := range calls {
		if tracked[c.Target] || tracked[c.TargetOrigin] {
			out = append(out, c)
		}
	}
	return out
}

// FunctionName returns the interceptor identifier of a call site. It combines
// the containing type, method, caller and position so that two calls never
// share a name.
func FunctionName(site models.CallSiteDescriptor) string {
	tu := templates.DefaultTemplateUtils
	caller := tu.Capitalize(tu.StripSeparators(site.Caller))
	if caller == "" {
		caller = "Package"
	}
	return fmt.Sprintf("intercept%s%sFor%s_L%d_C%d",
		tu.StripSeparators(site.Container), tu.StripSeparators(site.Method), caller,
		site.Location.Line, site.Location.Column)
}

// Generate renders the interceptor of one call site. Unsupported sites yield
// a diagnostic and no unit.
func (g *Generator) Generate(site models.CallSiteDescriptor, declared []string) (*models.Unit, []models.Diagnostic, error) {
	if site.Unsupported != "" {
		return nil, []models.Diagnostic{unsupported(site)}, nil
	}

	name := FunctionName(site)
	if i := sort.SearchStrings(declared, name); i < len(declared) && declared[i] == name {
		return nil, []models.Diagnostic{{
			Severity: models.SeverityWarning,
			Code:     models.DiagNameCollision,
			Message:  fmt.Sprintf("interceptor %s not generated: the name is already declared", name),
			Location: site.Location,
		}}, nil
	}

	paramRefs := make([]models.TypeRef, 0, len(site.Params)+1)
	paramRefs = append(paramRefs, site.Receiver)
	for _, p := range site.Params {
		paramRefs = append(paramRefs, p.Type)
	}
	reserved := synth.ReservedNames(nil, paramRefs, site.Results)

	spanName := strconv.Quote(SpanPrefix+".") + "+" +
		templates.Qualified(templates.TelemetryPackage, "TypeName") + "(" +
		templates.Qualified("reflect", "TypeOf") + "(source))+" +
		strconv.Quote("."+site.Method)

	body, err := synth.Instrument(synth.Call{
		Directive:    annotations.FormatIntercepts(site.Location, site.AddrOf),
		Name:         name,
		Leading:      []models.Param{{Name: "source", Type: site.Receiver}},
		Params:       synth.SafeParams(site.Params, reserved),
		Results:      site.Results,
		Variadic:     site.Variadic,
		Shape:        site.Shape,
		ContextParam: site.ContextParam,
		Target:       "source." + site.Method,
		SpanName:     spanName,
		Instrumented: true,
	}, g.hooks)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render interceptor %s: %w", name, err)
	}

	im := templates.NewImportManager(declared...)
	im.Reserve("source", "span", "err", "r")
	im.AddRefs(paramRefs...)
	im.AddRefs(site.Results...)

	content, err := templates.RenderFile(site.PackageName, im, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render interceptor %s: %w", name, err)
	}

	return &models.Unit{
		Kind:        models.UnitInterceptor,
		Package:     site.Package,
		PackageName: site.PackageName,
		Dir:         site.Dir,
		Hint:        name,
		Content:     content,
	}, nil, nil
}

// unsupported converts a resolver skip reason, "TG00x: why", into a diagnostic
func unsupported(site models.CallSiteDescriptor) models.Diagnostic {
	code, reason := models.DiagUnnameableType, site.Unsupported
	if i := strings.Index(site.Unsupported, ": "); i > 0 && strings.HasPrefix(site.Unsupported, "TG") {
		code, reason = site.Unsupported[:i], site.Unsupported[i+2:]
	}
	return models.Diagnostic{
		Severity: models.SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf("call to %s.%s in %s not intercepted: %s", site.Container, site.Method, site.Caller, reason),
		Location: site.Location,
	}
}

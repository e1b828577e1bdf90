package templates

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	tgerrors "github.com/toyz/tracegen/internal/errors"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/resolver"
)

// Runtime packages imported by generated code
const (
	TelemetryPackage = "github.com/toyz/tracegen/pkg/telemetry"
	AdaptersPackage  = "github.com/toyz/tracegen/pkg/telemetry/adapters"
)

var registry = NewTemplateRegistry()

// MethodData is the input of the method template
type MethodData struct {
	Doc          string
	Directive    string // attached directive comment, interceptors only
	Receiver     string // "(d *DecoratedX) ", empty for free functions
	Name         string
	Params       string
	Results      string // " T", " (A, B)" or empty
	Call         string // the delegated call expression
	Returns      bool   // the call produces results
	Instrumented bool
	Shape        string
	ResultVars   string // value results of a GenericTask, e.g. "r0, r1"
	Before       string
	OnError      string
	After        string
	Recovered    string // expression converting a recovered value to an error
}

// DecoratorData is the input of the decorator type template
type DecoratorData struct {
	TypeName       string
	InterfaceName  string
	Interface      string // interface expression, instantiated with the type params
	Constructor    string
	BaseField      string
	TypeField      string
	TypeParamsDecl string // "[T any]" or empty
	TypeArgs       string // "[T]" or empty
	Generic        bool
	ReflectType    string
	ReflectTypeOf  string
}

// TypeMapData is the input of the type-map template
type TypeMapData struct {
	Entries []models.TypeMapEntry
}

// GlueEntry is one decorator substitution in registration glue
type GlueEntry struct {
	Local       string
	Constructor string
}

// GlueData is the input of the fx, dig and web glue templates
type GlueData struct {
	Lib      string // library qualifier
	Adapters string // runtime adapters qualifier
	Entries  []GlueEntry
}

// DefaultSourceData is the input of the default tracer template
type DefaultSourceData struct {
	NewSource string
	Module    string
	Version   string
}

// Qualified returns the marked form of pkgPath.name for use inside template data
func Qualified(pkgPath, name string) string {
	return resolver.QualifiedRef(pkgPath, name)
}

// Qualifier returns the marked qualifier of pkgPath, without a trailing name
func Qualifier(pkgPath string) string {
	ref := resolver.QualifiedRef(pkgPath, "")
	return strings.TrimSuffix(ref, ".")
}

// GenerateMethod renders one method or interceptor function
func GenerateMethod(data MethodData) (string, error) {
	return executeTemplate("method", registry.MustGet("method"), data)
}

// GenerateDecorator renders a decorator type and its constructor
func GenerateDecorator(data DecoratorData) (string, error) {
	return executeTemplate("decorator", registry.MustGet("decorator"), data)
}

// GenerateTypeMap renders the DecoratedTypes map
func GenerateTypeMap(data TypeMapData) (string, error) {
	return executeTemplate("typemap", registry.MustGet("typemap"), data)
}

// GenerateGlue renders the glue template registered under name
func GenerateGlue(name string, data GlueData) (string, error) {
	tmpl, ok := registry.Get(name)
	if !ok {
		return "", fmt.Errorf("no glue template named %s", name)
	}
	return executeTemplate(name, tmpl, data)
}

// GenerateDefaultSource renders the DefaultTracer declaration
func GenerateDefaultSource(data DefaultSourceData) (string, error) {
	return executeTemplate("default-source", registry.MustGet("default-source"), data)
}

// executeTemplate executes a Go template with the given data
func executeTemplate(name, templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return "", tgerrors.WrapTemplateError(name, "parse", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", tgerrors.WrapTemplateError(name, "execute", err)
	}

	return buf.String(), nil
}

// RenderFile assembles a complete generated file: header, package clause,
// imports and body. Import markers in body are replaced with the aliases the
// import manager picks, and the result is gofmt-formatted.
func RenderFile(packageName string, im *ImportManager, body string) ([]byte, error) {
	im.Collect(body)

	var src strings.Builder
	src.WriteString(models.GeneratedHeader)
	src.WriteString("\n\npackage ")
	src.WriteString(packageName)
	src.WriteString("\n\n")
	if imports := im.GenerateImports(); imports != "" {
		src.WriteString(imports)
		src.WriteString("\n")
	}
	src.WriteString(im.Expand(body))

	formatted, err := format.Source([]byte(src.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to format generated %s source: %w", packageName, err)
	}
	return formatted, nil
}

// Package synth generates decorator types: wrappers that implement an
// interface by delegating to a wrapped instance, with tracing hooks around
// every call.
package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/templates"
)

// DecoratorPrefix starts every generated decorator name
const DecoratorPrefix = "Decorated"

// TypeMapName is the map generated next to the decorators of a package. No
// decorator may take its name or its file.
const TypeMapName = DecoratorPrefix + "Types"

// Synthesizer turns interface descriptors into decorator units
type Synthesizer struct {
	hooks Hooks
}

// New creates a synthesizer using hooks, with empty hooks taken from DefaultHooks
func New(hooks Hooks) *Synthesizer {
	return &Synthesizer{hooks: hooks.WithDefaults()}
}

// TypeName returns the decorator name for an interface identifier
func TypeName(iface string) string {
	return DecoratorPrefix + templates.DefaultTemplateUtils.StripSeparators(iface)
}

// Constructor returns the constructor name for an interface identifier
func Constructor(iface string) string {
	return "New" + TypeName(iface)
}

// Describe builds the decorator descriptor for iface
func (s *Synthesizer) Describe(iface models.InterfaceDescriptor) models.DecoratorDescriptor {
	desc := models.DecoratorDescriptor{
		TypeName:    TypeName(iface.Name),
		Constructor: Constructor(iface.Name),
		BaseField:   "base",
		TypeField:   "baseType",
		Interface:   iface,
	}
	desc.Hint = desc.TypeName

	methodNames := make(map[string]bool)
	for _, m := range append(append([]models.MethodDescriptor(nil), iface.Methods...), iface.Embedded...) {
		methodNames[m.Name] = true
	}
	if methodNames[desc.BaseField] || methodNames[desc.TypeField] {
		desc.BaseField, desc.TypeField = "wrapped", "wrappedType"
	}

	for _, m := range iface.Methods {
		if m.Skip {
			desc.Delegated = append(desc.Delegated, m)
			continue
		}
		desc.Methods = append(desc.Methods, m)
	}
	desc.Delegated = append(desc.Delegated, iface.Embedded...)
	return desc
}

// Synthesize generates the decorator unit for iface. declared lists the
// package-scope names of the interface's package; a nil unit means the
// interface is not decorated.
func (s *Synthesizer) Synthesize(iface models.InterfaceDescriptor, declared []string) (*models.Unit, []models.Diagnostic, error) {
	if iface.Skip || iface.Unsupported != "" {
		return nil, nil, nil
	}

	desc := s.Describe(iface)
	if desc.TypeName == TypeMapName {
		return nil, []models.Diagnostic{{
			Severity: models.SeverityWarning,
			Code:     models.DiagNameCollision,
			Message:  fmt.Sprintf("decorator for %s not generated: %s is reserved for the type map", iface.Name, desc.TypeName),
			Location: iface.Location,
		}}, nil
	}
	for _, name := range []string{desc.TypeName, desc.Constructor} {
		if contains(declared, name) {
			return nil, []models.Diagnostic{{
				Severity: models.SeverityWarning,
				Code:     models.DiagNameCollision,
				Message:  fmt.Sprintf("decorator for %s not generated: %s is already declared", iface.Name, name),
				Location: iface.Location,
			}}, nil
		}
	}

	body, err := s.render(desc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render decorator for %s: %w", iface.ID, err)
	}

	im := templates.NewImportManager(declared...)
	im.Reserve(bodyLocals...)
	for _, tp := range iface.TypeParams {
		im.Reserve(tp.Name)
	}
	for _, m := range append(append([]models.MethodDescriptor(nil), iface.Methods...), iface.Embedded...) {
		im.AddRefs(paramTypes(m.Params)...)
		im.AddRefs(m.Results...)
	}
	for _, tp := range iface.TypeParams {
		im.AddRefs(tp.Constraint)
	}

	content, err := templates.RenderFile(iface.PackageName, im, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render decorator for %s: %w", iface.ID, err)
	}

	return &models.Unit{
		Kind:        models.UnitDecorator,
		Package:     iface.Package,
		PackageName: iface.PackageName,
		Dir:         iface.Dir,
		Hint:        desc.Hint,
		Content:     content,
	}, nil, nil
}

func (s *Synthesizer) render(desc models.DecoratorDescriptor) (string, error) {
	tu := templates.DefaultTemplateUtils
	iface := desc.Interface
	typeArgs := tu.TypeArgs(iface.TypeParams)

	var body strings.Builder
	header, err := templates.GenerateDecorator(templates.DecoratorData{
		TypeName:       desc.TypeName,
		InterfaceName:  iface.Name,
		Interface:      iface.Name + typeArgs,
		Constructor:    desc.Constructor,
		BaseField:      desc.BaseField,
		TypeField:      desc.TypeField,
		TypeParamsDecl: tu.TypeParamsDecl(iface.TypeParams),
		TypeArgs:       typeArgs,
		Generic:        iface.Generic(),
		ReflectType:    templates.Qualified("reflect", "Type"),
		ReflectTypeOf:  templates.Qualified("reflect", "TypeOf"),
	})
	if err != nil {
		return "", err
	}
	body.WriteString(header)

	var typeParamNames []string
	for _, tp := range iface.TypeParams {
		typeParamNames = append(typeParamNames, tp.Name)
	}

	receiver := "(d *" + desc.TypeName + typeArgs + ") "
	target := "d." + desc.BaseField + "."
	typeName := templates.Qualified(templates.TelemetryPackage, "TypeName") + "(d." + desc.TypeField + ")"

	methods := make([]Call, 0, len(desc.Methods)+len(desc.Delegated))
	for _, m := range desc.Methods {
		methods = append(methods, s.call(m, receiver, target, typeParamNames, true,
			strconv.Quote(DecoratorPrefix+".")+"+"+typeName+"+"+strconv.Quote("."+m.Name)))
	}
	for _, m := range desc.Delegated {
		methods = append(methods, s.call(m, receiver, target, typeParamNames, false, ""))
	}
	delegated := methods[len(desc.Methods):]
	sort.SliceStable(delegated, func(i, j int) bool {
		return delegated[i].Name < delegated[j].Name
	})

	for _, c := range methods {
		text, err := Instrument(c, s.hooks)
		if err != nil {
			return "", fmt.Errorf("method %s: %w", c.Name, err)
		}
		body.WriteString("\n")
		body.WriteString(text)
	}
	return body.String(), nil
}

func (s *Synthesizer) call(m models.MethodDescriptor, receiver, target string, typeParams []string, instrumented bool, spanName string) Call {
	reserved := ReservedNames(typeParams, paramTypes(m.Params), m.Results)
	return Call{
		Receiver:     receiver,
		Name:         m.Name,
		Params:       SafeParams(m.Params, reserved),
		Results:      m.Results,
		Variadic:     m.Variadic,
		Shape:        m.Shape,
		ContextParam: m.ContextParam,
		Target:       target + m.Name,
		SpanName:     spanName,
		Instrumented: instrumented,
	}
}

func contains(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}

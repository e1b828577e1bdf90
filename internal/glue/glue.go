// Package glue emits registration helpers for libraries the program already
// references. An emitter whose library is absent produces nothing at all.
package glue

import (
	"fmt"
	"sort"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/snapshot"
	"github.com/toyz/tracegen/internal/templates"
)

// Library import paths that enable glue
const (
	FxLibrary    = "go.uber.org/fx"
	DigLibrary   = "go.uber.org/dig"
	GinLibrary   = "github.com/gin-gonic/gin"
	EchoLibrary  = "github.com/labstack/echo/v4"
	FiberLibrary = "github.com/gofiber/fiber/v2"
)

// Input is what an emitter knows about one package
type Input struct {
	Path     string
	Name     string
	Dir      string
	Imports  []string          // direct imports
	Manifest snapshot.Manifest // referenced libraries
	Declared []string          // sorted package-scope names
	Entries  []models.TypeMapEntry
}

// Declares reports whether name is declared outside generated files
func (in Input) Declares(name string) bool {
	i := sort.SearchStrings(in.Declared, name)
	return i < len(in.Declared) && in.Declared[i] == name
}

// DirectlyImports reports whether the package imports lib itself
func (in Input) DirectlyImports(lib string) bool {
	for _, imp := range in.Imports {
		if imp == lib {
			return true
		}
	}
	return false
}

// Emitter produces one optional helper unit
type Emitter interface {
	Name() string
	Enabled(in Input) bool
	Emit(in Input) (*models.Unit, []models.Diagnostic, error)
}

// Registry runs emitters in registration order
type Registry struct {
	emitters []Emitter
}

// NewRegistry creates a registry with the fx, dig and web emitters
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(&containerEmitter{name: "fx", lib: FxLibrary, provides: []string{"DecoratorOptions", "DecoratorsModule"}})
	r.Register(&containerEmitter{name: "dig", lib: DigLibrary, provides: []string{"DecorateContainer"}})
	r.Register(&webEmitter{name: "gin", lib: GinLibrary, provides: "UseGinTelemetry"})
	r.Register(&webEmitter{name: "echo", lib: EchoLibrary, provides: "UseEchoTelemetry"})
	r.Register(&webEmitter{name: "fiber", lib: FiberLibrary, provides: "UseFiberTelemetry"})
	return r
}

// Register adds an emitter
func (r *Registry) Register(e Emitter) {
	r.emitters = append(r.emitters, e)
}

// Emitters returns the registered emitter names
func (r *Registry) Emitters() []string {
	names := make([]string, len(r.emitters))
	for i, e := range r.emitters {
		names[i] = e.Name()
	}
	return names
}

// Emit runs every enabled emitter over in
func (r *Registry) Emit(in Input) ([]*models.Unit, []models.Diagnostic, error) {
	var units []*models.Unit
	var diags []models.Diagnostic
	for _, e := range r.emitters {
		if !e.Enabled(in) {
			continue
		}
		unit, d, err := e.Emit(in)
		if err != nil {
			return nil, nil, fmt.Errorf("%s glue for %s: %w", e.Name(), in.Path, err)
		}
		diags = append(diags, d...)
		if unit != nil {
			units = append(units, unit)
		}
	}
	return units, diags, nil
}

// ReferencesDefaultSource reports whether any of units relies on the
// package's DefaultTracer
func ReferencesDefaultSource(units []*models.Unit) bool {
	for _, u := range units {
		switch u.Kind {
		case models.UnitDecorator, models.UnitInterceptor:
			return true
		case models.UnitGlue:
			if u.Hint == "gin" || u.Hint == "echo" || u.Hint == "fiber" {
				return true
			}
		}
	}
	return false
}

func collision(in Input, emitter, name string) models.Diagnostic {
	return models.Diagnostic{
		Severity: models.SeverityWarning,
		Code:     models.DiagNameCollision,
		Message:  fmt.Sprintf("%s glue for %s not generated: %s is already declared", emitter, in.Path, name),
		Location: models.Location{Path: in.Dir},
	}
}

func render(in Input, hint string, im *templates.ImportManager, body string) (*models.Unit, error) {
	content, err := templates.RenderFile(in.Name, im, body)
	if err != nil {
		return nil, err
	}
	return &models.Unit{
		Kind:        models.UnitGlue,
		Package:     in.Path,
		PackageName: in.Name,
		Dir:         in.Dir,
		Hint:        hint,
		Content:     content,
	}, nil
}

// containerEmitter substitutes decorators in a dependency-injection container
type containerEmitter struct {
	name     string
	lib      string
	provides []string
}

func (e *containerEmitter) Name() string { return e.name }

func (e *containerEmitter) Enabled(in Input) bool {
	return len(in.Entries) > 0 && in.Manifest.References(e.lib)
}

func (e *containerEmitter) Emit(in Input) (*models.Unit, []models.Diagnostic, error) {
	for _, name := range e.provides {
		if in.Declares(name) {
			return nil, []models.Diagnostic{collision(in, e.name, name)}, nil
		}
	}

	im := templates.NewImportManager(in.Declared...)
	im.Reserve("base", "c", "err")
	data := templates.GlueData{Lib: templates.Qualifier(e.lib)}

	var diags []models.Diagnostic
	for _, entry := range in.Entries {
		if !entry.Resolved {
			diags = append(diags, models.Diagnostic{
				Severity: models.SeverityInfo,
				Code:     models.DiagGlueSkipped,
				Message:  fmt.Sprintf("%s registration skipped for %s: its type arguments cannot be named", e.name, entry.Interface),
				Location: models.Location{Path: in.Dir},
			})
			continue
		}
		im.AddRefs(entry.Local)
		data.Entries = append(data.Entries, templates.GlueEntry{Local: entry.Local.Expr, Constructor: entry.Constructor})
	}
	if len(data.Entries) == 0 {
		return nil, diags, nil
	}

	body, err := templates.GenerateGlue(e.name, data)
	if err != nil {
		return nil, nil, err
	}
	unit, err := render(in, e.name, im, body)
	return unit, diags, err
}

// webEmitter installs the tracing middleware on a web framework
type webEmitter struct {
	name     string
	lib      string
	provides string
}

func (e *webEmitter) Name() string { return e.name }

func (e *webEmitter) Enabled(in Input) bool {
	return in.DirectlyImports(e.lib)
}

func (e *webEmitter) Emit(in Input) (*models.Unit, []models.Diagnostic, error) {
	if in.Declares(e.provides) {
		return nil, []models.Diagnostic{collision(in, e.name, e.provides)}, nil
	}
	body, err := templates.GenerateGlue(e.name, templates.GlueData{
		Lib:      templates.Qualifier(e.lib),
		Adapters: templates.Qualifier(templates.AdaptersPackage),
	})
	if err != nil {
		return nil, nil, err
	}
	im := templates.NewImportManager(in.Declared...)
	im.Reserve("r", "e", "router")
	unit, err := render(in, e.name, im, body)
	return unit, nil, err
}

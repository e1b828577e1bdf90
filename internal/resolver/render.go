package resolver

import (
	"fmt"
	"go/types"
	"sort"
	"strings"

	"github.com/toyz/tracegen/internal/models"
)

// importMarker delimits a package path inside a rendered expression. The
// import manager of each generated file swaps the marker for the alias it
// chooses, so aliases never depend on the order types were resolved in.
const importMarker = "\x00"

// QualifiedRef returns the placeholder form of pkgPath.name
func QualifiedRef(pkgPath, name string) string {
	return importMarker + pkgPath + importMarker + "." + name
}

// ExpandImports replaces every import marker in expr using alias
func ExpandImports(expr string, alias func(path string) string) string {
	if !strings.Contains(expr, importMarker) {
		return expr
	}
	var b strings.Builder
	for {
		start := strings.Index(expr, importMarker)
		if start < 0 {
			b.WriteString(expr)
			return b.String()
		}
		end := strings.Index(expr[start+1:], importMarker)
		if end < 0 {
			b.WriteString(expr)
			return b.String()
		}
		b.WriteString(expr[:start])
		b.WriteString(alias(expr[start+1 : start+1+end]))
		expr = expr[start+1+end+1:]
	}
}

// errUnnameable is reported for types that cannot be spelled in the destination package
type errUnnameable struct {
	what string
}

func (e errUnnameable) Error() string {
	return e.what
}

// Renderer renders types as Go source inside one destination package
type Renderer struct {
	dest            *types.Package
	allowTypeParams bool
}

// NewRenderer creates a renderer for dest. Type parameters are rejected unless
// allowTypeParams is set, which decorators need to reproduce a generic interface.
func NewRenderer(dest *types.Package, allowTypeParams bool) *Renderer {
	return &Renderer{dest: dest, allowTypeParams: allowTypeParams}
}

// Type renders t, or fails when t names something unreachable from dest
func (r *Renderer) Type(t types.Type) (models.TypeRef, error) {
	if err := r.check(t, make(map[types.Type]bool)); err != nil {
		return models.TypeRef{}, err
	}
	imports := make(map[string]string)
	expr := types.TypeString(t, func(p *types.Package) string {
		if p == r.dest || (r.dest != nil && p.Path() == r.dest.Path()) {
			return ""
		}
		imports[p.Path()] = p.Name()
		return importMarker + p.Path() + importMarker
	})
	ref := models.TypeRef{Expr: expr}
	paths := make([]string, 0, len(imports))
	for p := range imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		ref.Imports = append(ref.Imports, models.Import{Path: p, Name: imports[p]})
	}
	return ref, nil
}

// check walks t looking for names the destination package cannot spell
func (r *Renderer) check(t types.Type, seen map[types.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true

	switch t := t.(type) {
	case *types.Basic:
		return nil
	case *types.Pointer:
		return r.check(t.Elem(), seen)
	case *types.Slice:
		return r.check(t.Elem(), seen)
	case *types.Array:
		return r.check(t.Elem(), seen)
	case *types.Map:
		if err := r.check(t.Key(), seen); err != nil {
			return err
		}
		return r.check(t.Elem(), seen)
	case *types.Chan:
		return r.check(t.Elem(), seen)
	case *types.Signature:
		if err := r.checkTuple(t.Params(), seen); err != nil {
			return err
		}
		return r.checkTuple(t.Results(), seen)
	case *types.Tuple:
		return r.checkTuple(t, seen)
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			f := t.Field(i)
			if !f.Exported() && f.Pkg() != nil && !r.isDest(f.Pkg()) {
				return errUnnameable{fmt.Sprintf("struct field %s of package %s is unexported", f.Name(), f.Pkg().Path())}
			}
			if err := r.check(f.Type(), seen); err != nil {
				return err
			}
		}
		return nil
	case *types.Interface:
		for i := 0; i < t.NumMethods(); i++ {
			m := t.Method(i)
			if !m.Exported() && m.Pkg() != nil && !r.isDest(m.Pkg()) {
				return errUnnameable{fmt.Sprintf("interface method %s of package %s is unexported", m.Name(), m.Pkg().Path())}
			}
			if err := r.check(m.Type(), seen); err != nil {
				return err
			}
		}
		for i := 0; i < t.NumEmbeddeds(); i++ {
			if err := r.check(t.EmbeddedType(i), seen); err != nil {
				return err
			}
		}
		return nil
	case *types.Union:
		for i := 0; i < t.Len(); i++ {
			if err := r.check(t.Term(i).Type(), seen); err != nil {
				return err
			}
		}
		return nil
	case *types.TypeParam:
		if !r.allowTypeParams {
			return errUnnameable{fmt.Sprintf("type parameter %s is not in scope", t.Obj().Name())}
		}
		return nil
	case *types.Alias:
		if err := r.checkObject(t.Obj()); err != nil {
			return err
		}
		return r.checkTypeList(t.TypeArgs(), seen)
	case *types.Named:
		if err := r.checkObject(t.Obj()); err != nil {
			return err
		}
		return r.checkTypeList(t.TypeArgs(), seen)
	default:
		return errUnnameable{fmt.Sprintf("unsupported type %s", t)}
	}
}

func (r *Renderer) checkObject(obj *types.TypeName) error {
	pkg := obj.Pkg()
	if pkg == nil {
		// predeclared: error, comparable, any
		return nil
	}
	if obj.Parent() != nil && obj.Parent() != pkg.Scope() {
		return errUnnameable{fmt.Sprintf("type %s is declared inside a function", obj.Name())}
	}
	if !obj.Exported() && !r.isDest(pkg) {
		return errUnnameable{fmt.Sprintf("type %s.%s is unexported", pkg.Path(), obj.Name())}
	}
	return nil
}

func (r *Renderer) checkTuple(t *types.Tuple, seen map[types.Type]bool) error {
	for i := 0; i < t.Len(); i++ {
		if err := r.check(t.At(i).Type(), seen); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) checkTypeList(list *types.TypeList, seen map[types.Type]bool) error {
	for i := 0; i < list.Len(); i++ {
		if err := r.check(list.At(i), seen); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) isDest(p *types.Package) bool {
	return r.dest != nil && p.Path() == r.dest.Path()
}

// Display renders t fully qualified by import path, as used in type-map keys
func Display(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string { return p.Path() })
}

// Package resolver turns syntactic candidates into canonical, serialisable
// descriptors using the type checker's view of the program. Candidates that do
// not resolve to a tracked symbol are dropped without a diagnostic.
package resolver

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/toyz/tracegen/internal/annotations"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/scanner"
	"github.com/toyz/tracegen/internal/snapshot"
)

// DefaultSourceName is the well-known package-level tracer generated code uses
const DefaultSourceName = "DefaultTracer"

// PackageModel is everything later stages need to know about one package
type PackageModel struct {
	Path             string
	Name             string
	Dir              string
	Interfaces       []models.InterfaceDescriptor
	Implementations  []models.ImplementationDescriptor
	Members          []string                    // tracked member identifiers declared here, sorted
	Calls            []models.CallSiteDescriptor // method calls on snapshot types, in source order
	Declared         []string                    // package-scope names declared outside generated files, sorted
	HasDefaultSource bool
	Diagnostics      []models.Diagnostic
}

// Declares reports whether name is declared by a non-generated file
func (m *PackageModel) Declares(name string) bool {
	i := sort.SearchStrings(m.Declared, name)
	return i < len(m.Declared) && m.Declared[i] == name
}

// Resolve resolves the candidates scanned from pkg's source files. known holds
// the import path of every snapshot package; calls into other packages are
// dropped early.
func Resolve(snap *snapshot.Snapshot, pkg *snapshot.Package, files []scanner.FileCandidates, known map[string]bool) *PackageModel {
	r := &resolution{
		snap:    snap,
		pkg:     pkg,
		known:   known,
		model:   &PackageModel{Path: pkg.Path, Name: pkg.Name, Dir: pkg.Dir},
		members: make(map[string]bool),
	}
	r.model.Declared = declaredNames(snap, pkg)
	r.model.HasDefaultSource = r.model.Declares(DefaultSourceName)

	for _, fc := range files {
		file := pkg.File(fc.Path)
		if file == nil || file.Generated {
			continue
		}
		for _, c := range fc.Candidates {
			switch c.Kind {
			case scanner.KindInterface:
				r.resolveInterface(file, c)
			case scanner.KindAssertion:
				r.resolveAssertion(file, c)
			case scanner.KindMethod:
				r.resolveMethod(file, c)
			case scanner.KindCall:
				r.resolveCall(file, c)
			}
		}
	}

	for id := range r.members {
		r.model.Members = append(r.model.Members, id)
	}
	sort.Strings(r.model.Members)
	return r.model
}

type resolution struct {
	snap    *snapshot.Snapshot
	pkg     *snapshot.Package
	known   map[string]bool
	model   *PackageModel
	members map[string]bool
}

// nodePath returns the AST path enclosing the candidate's primary span
func (r *resolution) nodePath(file *snapshot.File, start, end int) []ast.Node {
	tf := r.snap.Fset.File(file.Syntax.Pos())
	if tf == nil || start < 0 || end > tf.Size() || start > end {
		return nil
	}
	path, _ := astutil.PathEnclosingInterval(file.Syntax, tf.Pos(start), tf.Pos(end))
	return path
}

func (r *resolution) diag(sev models.Severity, code string, pos token.Pos, format string, args ...interface{}) {
	r.model.Diagnostics = append(r.model.Diagnostics, models.Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: r.snap.Position(pos),
	})
}

func (r *resolution) resolveInterface(file *snapshot.File, c scanner.Candidate) {
	path := r.nodePath(file, c.Pos, c.End)
	if len(path) < 2 {
		return
	}
	ident, ok := path[0].(*ast.Ident)
	if !ok {
		return
	}
	spec, ok := path[1].(*ast.TypeSpec)
	if !ok {
		return
	}
	astIface, ok := spec.Type.(*ast.InterfaceType)
	if !ok {
		return
	}
	obj, ok := r.pkg.Info.Defs[ident].(*types.TypeName)
	if !ok || obj.IsAlias() {
		return
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return
	}
	iface, ok := named.Underlying().(*types.Interface)
	if !ok || !iface.IsMethodSet() {
		// constraint interfaces cannot be wrapped
		return
	}

	desc := models.InterfaceDescriptor{
		ID:          TypeID(named),
		Name:        obj.Name(),
		Package:     r.pkg.Path,
		PackageName: r.pkg.Name,
		Dir:         r.pkg.Dir,
		Location:    r.snap.Position(ident.Pos()),
		Skip:        c.Skip,
	}
	if desc.Skip {
		r.diag(models.SeverityInfo, models.DiagSkipDirective, ident.Pos(), "interface %s is marked //tracegen:skip", obj.Name())
	}

	render := NewRenderer(r.pkg.Types, true)
	for i := 0; i < named.TypeParams().Len(); i++ {
		tp := named.TypeParams().At(i)
		constraint, err := render.Type(tp.Constraint())
		if err != nil {
			desc.Unsupported = err.Error()
			break
		}
		desc.TypeParams = append(desc.TypeParams, models.TypeParam{Name: tp.Obj().Name(), Constraint: constraint})
	}

	explicit := make(map[string]bool)
	for _, field := range astIface.Methods.List {
		if len(field.Names) == 0 {
			continue
		}
		for _, name := range field.Names {
			fn, ok := r.pkg.Info.Defs[name].(*types.Func)
			if !ok {
				continue
			}
			explicit[fn.Name()] = true
			m, err := r.method(render, fn, name.Pos())
			if err != nil {
				desc.Unsupported = err.Error()
				continue
			}
			m.Skip = annotations.HasSkip(field.Doc, field.Comment)
			desc.Methods = append(desc.Methods, m)
		}
	}

	for i := 0; i < iface.NumMethods(); i++ {
		fn := iface.Method(i)
		if fn.Exported() && fn.Pkg() != nil && fn.Pkg().Path() == r.pkg.Path {
			r.members[MemberID(fn)] = true
		}
		if explicit[fn.Name()] {
			continue
		}
		if !fn.Exported() && fn.Pkg() != nil && fn.Pkg().Path() != r.pkg.Path {
			desc.Unsupported = fmt.Sprintf("embedded method %s of package %s is unexported", fn.Name(), fn.Pkg().Path())
			continue
		}
		m, err := r.method(render, fn, ident.Pos())
		if err != nil {
			desc.Unsupported = err.Error()
			continue
		}
		desc.Embedded = append(desc.Embedded, m)
	}

	if desc.Unsupported != "" {
		r.diag(models.SeverityWarning, models.DiagUnsupportedType, ident.Pos(), "interface %s cannot be decorated: %s", obj.Name(), desc.Unsupported)
	}
	r.model.Interfaces = append(r.model.Interfaces, desc)
}

// method describes fn as seen from the interface's own package
func (r *resolution) method(render *Renderer, fn *types.Func, pos token.Pos) (models.MethodDescriptor, error) {
	sig := fn.Type().(*types.Signature)
	params, ctxIndex, err := renderParams(render, sig)
	if err != nil {
		return models.MethodDescriptor{}, err
	}
	results, err := renderResults(render, sig)
	if err != nil {
		return models.MethodDescriptor{}, err
	}
	shape, gap := Classify(sig)
	if gap {
		r.diag(models.SeverityWarning, models.DiagUnclassifiedShape, pos,
			"method %s returns a channel; it is wrapped with the %s template and its deferred work is not observed", fn.Name(), shape)
	}
	return models.MethodDescriptor{
		Name:         fn.Name(),
		Params:       params,
		Results:      results,
		Variadic:     sig.Variadic(),
		Shape:        shape,
		ContextParam: ctxIndex,
	}, nil
}

func renderParams(render *Renderer, sig *types.Signature) ([]models.Param, int, error) {
	ctxIndex := -1
	params := make([]models.Param, 0, sig.Params().Len())
	for i := 0; i < sig.Params().Len(); i++ {
		v := sig.Params().At(i)
		t := v.Type()
		if sig.Variadic() && i == sig.Params().Len()-1 {
			if s, ok := t.(*types.Slice); ok {
				t = s.Elem()
			}
		}
		ref, err := render.Type(t)
		if err != nil {
			return nil, -1, err
		}
		if ctxIndex < 0 && IsContext(v.Type()) {
			ctxIndex = i
		}
		params = append(params, models.Param{Name: v.Name(), Type: ref})
	}
	return params, ctxIndex, nil
}

func renderResults(render *Renderer, sig *types.Signature) ([]models.TypeRef, error) {
	results := make([]models.TypeRef, 0, sig.Results().Len())
	for i := 0; i < sig.Results().Len(); i++ {
		ref, err := render.Type(sig.Results().At(i).Type())
		if err != nil {
			return nil, err
		}
		results = append(results, ref)
	}
	return results, nil
}

func (r *resolution) resolveAssertion(file *snapshot.File, c scanner.Candidate) {
	path := r.nodePath(file, c.Pos, c.End)
	if len(path) == 0 {
		return
	}
	typeExpr, ok := path[0].(ast.Expr)
	if !ok {
		return
	}
	tv, ok := r.pkg.Info.Types[typeExpr]
	if !ok || !tv.IsType() {
		return
	}
	named, ok := types.Unalias(tv.Type).(*types.Named)
	if !ok || !types.IsInterface(named) {
		return
	}
	origin := named.Origin()
	obj := origin.Obj()
	if obj.Pkg() == nil || !obj.Exported() || !r.known[obj.Pkg().Path()] {
		return
	}

	impl := models.ImplementationDescriptor{
		Interface: TypeID(origin),
		Location:  r.snap.Position(typeExpr.Pos()),
	}
	if valuePath := r.nodePath(file, c.Aux, c.AuxEnd); len(valuePath) > 0 {
		if valueExpr, ok := valuePath[0].(ast.Expr); ok {
			if vt, ok := r.pkg.Info.Types[valueExpr]; ok && vt.Type != nil {
				impl.Type = Display(vt.Type)
			}
		}
	}

	render := NewRenderer(obj.Pkg(), false)
	args := named.TypeArgs()
	for i := 0; i < args.Len(); i++ {
		impl.DisplayArgs = append(impl.DisplayArgs, Display(args.At(i)))
		ref, err := render.Type(args.At(i))
		if err != nil {
			// the map entry is still emitted; glue skips it
			ref = models.TypeRef{}
		}
		impl.TypeArgs = append(impl.TypeArgs, ref)
	}
	r.model.Implementations = append(r.model.Implementations, impl)
}

func (r *resolution) resolveMethod(file *snapshot.File, c scanner.Candidate) {
	path := r.nodePath(file, c.Pos, c.End)
	if len(path) == 0 {
		return
	}
	ident, ok := path[0].(*ast.Ident)
	if !ok {
		return
	}
	fn, ok := r.pkg.Info.Defs[ident].(*types.Func)
	if !ok || !fn.Exported() {
		return
	}
	named := receiverNamed(fn.Type().(*types.Signature).Recv().Type())
	if named == nil || !named.Obj().Exported() || types.IsInterface(named) {
		return
	}
	r.members[MemberID(fn)] = true
}

func (r *resolution) resolveCall(file *snapshot.File, c scanner.Candidate) {
	path := r.nodePath(file, c.Pos, c.End)
	if len(path) < 3 {
		return
	}
	sel, ok := path[1].(*ast.SelectorExpr)
	if !ok || path[0] != sel.Sel {
		return
	}
	var call *ast.CallExpr
	for _, n := range path[2:] {
		if ce, ok := n.(*ast.CallExpr); ok {
			if ast.Unparen(ce.Fun) == sel {
				call = ce
			}
			break
		}
		if _, ok := n.(*ast.ParenExpr); !ok {
			break
		}
	}
	if call == nil {
		return
	}

	selection := r.pkg.Info.Selections[sel]
	if selection == nil || selection.Kind() != types.MethodVal {
		// qualified identifiers and method expressions are static calls
		return
	}
	fn, ok := selection.Obj().(*types.Func)
	if !ok || !fn.Exported() || fn.Pkg() == nil || !r.known[fn.Pkg().Path()] {
		return
	}
	origin := fn.Origin()

	site := models.CallSiteDescriptor{
		Location:     r.snap.Position(sel.Sel.Pos()),
		Caller:       c.Caller,
		Target:       MemberID(fn),
		TargetOrigin: MemberID(origin),
		Method:       fn.Name(),
		Package:      r.pkg.Path,
		PackageName:  r.pkg.Name,
		Dir:          r.pkg.Dir,
		ContextParam: -1,
	}
	if named := receiverNamed(origin.Type().(*types.Signature).Recv().Type()); named != nil {
		site.Container = named.Obj().Name()
	}

	sig := selection.Type().(*types.Signature)
	site.Shape, _ = Classify(sig)
	site.Variadic = sig.Variadic()

	recv := selection.Recv()
	site.AddrOf = hasPointerReceiver(fn) && !isPointer(recv) && !types.IsInterface(recv) && !selection.Indirect()
	if site.AddrOf {
		recv = types.NewPointer(recv)
	}

	render := NewRenderer(r.pkg.Types, false)
	var err error
	if site.Receiver, err = render.Type(recv); err == nil {
		if site.Params, site.ContextParam, err = renderParams(render, sig); err == nil {
			site.Results, err = renderResults(render, sig)
		}
	}
	switch {
	case err != nil:
		code := models.DiagUnnameableType
		if containsTypeParam(recv) || containsTypeParam(sig) {
			code = models.DiagGenericCaller
		}
		site.Unsupported = code + ": " + err.Error()
	case len(call.Args) == 1 && isTuple(r.pkg.Info.Types[call.Args[0]].Type):
		site.Unsupported = models.DiagMultiValueArgument + ": a multi-valued argument cannot be forwarded with a receiver"
	}
	r.model.Calls = append(r.model.Calls, site)
}

func hasPointerReceiver(fn *types.Func) bool {
	recv := fn.Type().(*types.Signature).Recv()
	return recv != nil && isPointer(recv.Type())
}

func isPointer(t types.Type) bool {
	_, ok := types.Unalias(t).(*types.Pointer)
	return ok
}

func isTuple(t types.Type) bool {
	tuple, ok := t.(*types.Tuple)
	return ok && tuple.Len() > 1
}

// containsTypeParam reports whether t mentions a type parameter anywhere
func containsTypeParam(t types.Type) bool {
	found := false
	var walk func(t types.Type, depth int)
	walk = func(t types.Type, depth int) {
		if found || t == nil || depth > 32 {
			return
		}
		switch t := t.(type) {
		case *types.TypeParam:
			found = true
		case *types.Pointer:
			walk(t.Elem(), depth+1)
		case *types.Slice:
			walk(t.Elem(), depth+1)
		case *types.Array:
			walk(t.Elem(), depth+1)
		case *types.Chan:
			walk(t.Elem(), depth+1)
		case *types.Map:
			walk(t.Key(), depth+1)
			walk(t.Elem(), depth+1)
		case *types.Tuple:
			for i := 0; i < t.Len(); i++ {
				walk(t.At(i).Type(), depth+1)
			}
		case *types.Signature:
			walk(t.Params(), depth+1)
			walk(t.Results(), depth+1)
		case *types.Named:
			for i := 0; i < t.TypeArgs().Len(); i++ {
				walk(t.TypeArgs().At(i), depth+1)
			}
		}
	}
	walk(t, 0)
	return found
}

// declaredNames lists package-scope names declared by non-generated files
func declaredNames(snap *snapshot.Snapshot, pkg *snapshot.Package) []string {
	if pkg.Types == nil {
		return nil
	}
	var names []string
	for _, name := range pkg.Types.Scope().Names() {
		if pkg.DeclaresOutsideGenerated(snap.Fset, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

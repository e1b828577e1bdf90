// Package scanner applies cheap, syntax-only predicates to parsed files. It
// over-matches on purpose; the resolver discards whatever fails semantic checks.
package scanner

import (
	"go/ast"
	"go/token"
	"strings"
	"unicode"

	"github.com/toyz/tracegen/internal/annotations"
)

// Kind identifies which predicate selected a candidate
type Kind int

const (
	// KindInterface is an exported interface type declaration
	KindInterface Kind = iota
	// KindAssertion is a package-level `var _ T = expr` implementation assertion
	KindAssertion
	// KindMethod is an exported method declaration
	KindMethod
	// KindCall is a call through a selector expression
	KindCall
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindAssertion:
		return "assertion"
	case KindMethod:
		return "method"
	case KindCall:
		return "call"
	default:
		return "unknown"
	}
}

// Candidate is a node selected by a syntax predicate. Positions are byte
// offsets into the file so that candidates survive re-parsing and can be
// memoised by file content alone.
type Candidate struct {
	Kind   Kind
	Name   string // declared or selected identifier
	Pos    int    // offset of the identifier, or of the asserted type
	End    int
	Aux    int    // offset of the asserted value expression
	AuxEnd int
	Caller string // enclosing function symbol, calls only
	Skip   bool   // //tracegen:skip on the declaration
}

// FileCandidates holds every candidate found in one file
type FileCandidates struct {
	Path       string
	Candidates []Candidate
}

// Count returns how many candidates of kind k were found
func (fc FileCandidates) Count(k Kind) int {
	n := 0
	for _, c := range fc.Candidates {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// ScanFile runs every predicate over one file. Candidates are returned in
// source order.
func ScanFile(fset *token.FileSet, path string, file *ast.File) FileCandidates {
	s := &fileScanner{fset: fset, stem: fileStem(path)}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			s.scanGenDecl(d)
		case *ast.FuncDecl:
			s.scanFuncDecl(d)
		}
	}
	return FileCandidates{Path: path, Candidates: s.out}
}

type fileScanner struct {
	fset *token.FileSet
	stem string
	out  []Candidate
}

func (s *fileScanner) offset(pos token.Pos) int {
	return s.fset.Position(pos).Offset
}

func (s *fileScanner) scanGenDecl(d *ast.GenDecl) {
	switch d.Tok {
	case token.TYPE:
		for _, spec := range d.Specs {
			ts := spec.(*ast.TypeSpec)
			if IsPublicInterface(ts) {
				doc := ts.Doc
				if doc == nil && len(d.Specs) == 1 {
					doc = d.Doc
				}
				s.out = append(s.out, Candidate{
					Kind: KindInterface,
					Name: ts.Name.Name,
					Pos:  s.offset(ts.Name.Pos()),
					End:  s.offset(ts.Name.End()),
					Skip: annotations.HasSkip(doc),
				})
			}
		}
	case token.VAR:
		for _, spec := range d.Specs {
			vs := spec.(*ast.ValueSpec)
			caller := s.valueSpecSymbol(vs)
			if IsAssertion(vs) {
				for _, value := range vs.Values {
					s.out = append(s.out, Candidate{
						Kind:   KindAssertion,
						Name:   typeName(vs.Type),
						Pos:    s.offset(vs.Type.Pos()),
						End:    s.offset(vs.Type.End()),
						Aux:    s.offset(value.Pos()),
						AuxEnd: s.offset(value.End()),
					})
				}
			}
			for _, value := range vs.Values {
				s.scanCalls(value, caller)
			}
		}
	}
}

func (s *fileScanner) scanFuncDecl(d *ast.FuncDecl) {
	if d.Recv != nil && d.Name.IsExported() {
		s.out = append(s.out, Candidate{
			Kind: KindMethod,
			Name: d.Name.Name,
			Pos:  s.offset(d.Name.Pos()),
			End:  s.offset(d.Name.End()),
		})
	}
	if d.Body != nil {
		s.scanCalls(d.Body, s.funcSymbol(d))
	}
}

func (s *fileScanner) scanCalls(root ast.Node, caller string) {
	ast.Inspect(root, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if sel, ok := IsMemberCall(call); ok {
			s.out = append(s.out, Candidate{
				Kind:   KindCall,
				Name:   sel.Sel.Name,
				Pos:    s.offset(sel.Sel.Pos()),
				End:    s.offset(sel.Sel.End()),
				Aux:    s.offset(call.Pos()),
				AuxEnd: s.offset(call.End()),
				Caller: caller,
			})
		}
		return true
	})
}

// IsPublicInterface is the "exported interface declaration" predicate
func IsPublicInterface(ts *ast.TypeSpec) bool {
	if !ts.Name.IsExported() || ts.Assign.IsValid() {
		return false
	}
	_, ok := ts.Type.(*ast.InterfaceType)
	return ok
}

// IsAssertion is the "type with a base-type list" predicate: a blank variable
// with an explicit type and an initialiser.
func IsAssertion(vs *ast.ValueSpec) bool {
	if vs.Type == nil || len(vs.Values) == 0 || len(vs.Names) != len(vs.Values) {
		return false
	}
	for _, name := range vs.Names {
		if name.Name != "_" {
			return false
		}
	}
	return true
}

// IsMemberCall is the "call expression" predicate restricted to selector calls
func IsMemberCall(call *ast.CallExpr) (*ast.SelectorExpr, bool) {
	sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
	return sel, ok
}

// funcSymbol names the calling function: Serve on *Handler becomes HandlerServe.
// init functions take the file stem since a package may declare several.
func (s *fileScanner) funcSymbol(d *ast.FuncDecl) string {
	name := d.Name.Name
	if d.Recv == nil {
		if name == "init" {
			return "init" + s.stem
		}
		return name
	}
	if len(d.Recv.List) == 1 {
		return receiverTypeName(d.Recv.List[0].Type) + name
	}
	return name
}

// valueSpecSymbol names the first non-blank variable. Blank declarations
// take the file stem like init.
func (s *fileScanner) valueSpecSymbol(vs *ast.ValueSpec) string {
	for _, name := range vs.Names {
		if name.Name != "_" {
			return name.Name
		}
	}
	return "var" + s.stem
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.ParenExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

func typeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return typeName(t.X)
	case *ast.IndexListExpr:
		return typeName(t.X)
	case *ast.ParenExpr:
		return typeName(t.X)
	default:
		return ""
	}
}

// fileStem turns /a/b/stats_handler.go into StatsHandler
func fileStem(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".go")
	var b strings.Builder
	upper := true
	for _, r := range base {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

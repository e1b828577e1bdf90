package intercept

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path"
	"sort"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/toyz/tracegen/internal/annotations"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/snapshot"
)

// OverlayFile is the name of the manifest passed to go build -overlay
const OverlayFile = "overlay.json"

// Overlay is the go build -overlay manifest
type Overlay struct {
	Replace map[string]string `json:"Replace"`
}

// Marshal encodes the manifest with sorted keys
func (o Overlay) Marshal() ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}

// Binding is one parsed interceptor tag
type Binding struct {
	Function string
	annotations.Intercept
}

// Host redirects tagged call expressions to their interceptors
type Host struct {
	// OverlayDir receives rewritten caller files and interceptor sources
	OverlayDir string
	// ReadFile loads a caller file by normalised path, os.ReadFile when nil
	ReadFile func(normalized string) ([]byte, error)
}

// Result is the outcome of Apply. Files maps the normalised overlay paths to
// their content; nothing is written by Apply itself.
type Result struct {
	Overlay   Overlay
	Files     map[string][]byte
	Rewritten int
	Unmatched []models.Location // tags whose call expression was not found
}

// Bindings extracts the interceptor tags of a generated source file
func Bindings(content []byte) ([]Binding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse interceptor source: %w", err)
	}

	var out []Binding
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil || fn.Recv != nil {
			continue
		}
		for _, c := range fn.Doc.List {
			if !annotations.IsDirective(c.Text) {
				continue
			}
			in, err := annotations.ParseIntercepts(c.Text)
			if err != nil {
				continue
			}
			out = append(out, Binding{Function: fn.Name.Name, Intercept: in})
		}
	}
	return out, nil
}

// Apply rewrites every caller file targeted by the interceptor units and
// builds the overlay manifest.
func (h *Host) Apply(units []*models.Unit) (*Result, error) {
	readFile := h.ReadFile
	if readFile == nil {
		readFile = func(p string) ([]byte, error) { return os.ReadFile(snapshot.NativePath(p)) }
	}

	res := &Result{
		Overlay: Overlay{Replace: make(map[string]string)},
		Files:   make(map[string][]byte),
	}

	byFile := make(map[string]map[models.Location]Binding)
	for _, u := range units {
		if u.Kind != models.UnitInterceptor {
			continue
		}
		bindings, err := Bindings(u.Content)
		if err != nil {
			return nil, fmt.Errorf("interceptor %s: %w", u.Hint, err)
		}
		for _, b := range bindings {
			p := snapshot.NormalizePath(b.Location.Path)
			if byFile[p] == nil {
				byFile[p] = make(map[models.Location]Binding)
			}
			b.Location.Path = p
			byFile[p][b.Location] = b
		}

		target := path.Join(u.Dir, u.FileName())
		h.add(res, target, u.Content)
	}

	callers := make([]string, 0, len(byFile))
	for p := range byFile {
		callers = append(callers, p)
	}
	sort.Strings(callers)

	for _, caller := range callers {
		src, err := readFile(caller)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", caller, err)
		}
		rewritten, matched, err := Rewrite(caller, src, byFile[caller])
		if err != nil {
			return nil, err
		}
		res.Rewritten += len(matched)
		for loc := range byFile[caller] {
			if !matched[loc] {
				res.Unmatched = append(res.Unmatched, loc)
			}
		}
		if len(matched) > 0 {
			h.add(res, caller, rewritten)
		}
	}

	sort.Slice(res.Unmatched, func(i, j int) bool {
		a, b := res.Unmatched[i], res.Unmatched[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return res, nil
}

// add places content in the overlay directory under a name derived from the
// original path
func (h *Host) add(res *Result, original string, content []byte) {
	original = snapshot.NormalizePath(original)
	replacement := path.Join(snapshot.NormalizePath(h.OverlayDir),
		fmt.Sprintf("%016x_%s", xxhash.Sum64String(original), path.Base(original)))
	res.Overlay.Replace[snapshot.NativePath(original)] = snapshot.NativePath(replacement)
	res.Files[replacement] = content
}

// Rewrite replaces each bound call expression in src with a call to its
// interceptor, passing the receiver first. It reports which bindings matched.
func Rewrite(filename string, src []byte, bindings map[models.Location]Binding) ([]byte, map[models.Location]bool, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	matched := make(map[models.Location]bool)
	normalized := snapshot.NormalizePath(filename)

	// post-order, so calls nested in receivers or arguments are rewritten first
	astutil.Apply(file, nil, func(c *astutil.Cursor) bool {
		call, ok := c.Node().(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr)
		if !ok || !sel.Sel.Pos().IsValid() {
			return true
		}
		pos := fset.Position(sel.Sel.Pos())
		loc := models.Location{Path: normalized, Line: pos.Line, Column: pos.Column}
		b, ok := bindings[loc]
		if !ok {
			return true
		}

		recv := sel.X
		if b.AddrOf {
			recv = &ast.UnaryExpr{Op: token.AND, X: sel.X}
		}
		c.Replace(&ast.CallExpr{
			Fun:      ast.NewIdent(b.Function),
			Lparen:   call.Lparen,
			Args:     append([]ast.Expr{recv}, call.Args...),
			Ellipsis: call.Ellipsis,
			Rparen:   call.Rparen,
		})
		matched[loc] = true
		return true
	})

	if len(matched) == 0 {
		return src, matched, nil
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, file); err != nil {
		return nil, nil, fmt.Errorf("failed to format %s: %w", filename, err)
	}
	return buf.Bytes(), matched, nil
}

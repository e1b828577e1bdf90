package snapshot

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strconv"
	"strings"
)

// SourceConfig describes an in-memory program
type SourceConfig struct {
	Module   string            // module path; package paths are Module + "/" + directory
	Version  string            // module version, UnspecifiedVersion when empty
	Root     string            // absolute directory files are placed under, /src/<module> when empty
	Files    map[string]string // module-relative file name -> content
	Requires []string          // module requirements reported in every manifest, as path or path@version
}

// FromSources parses and type-checks an in-memory program. Packages outside the
// program resolve through the source importer; type errors are recorded on each
// package rather than failing the load.
func FromSources(cfg SourceConfig) (*Snapshot, error) {
	if cfg.Module == "" {
		return nil, fmt.Errorf("module path is required")
	}
	root := cfg.Root
	if root == "" {
		root = "/src/" + cfg.Module
	}
	root = NormalizePath(root)

	fset := token.NewFileSet()
	byDir := make(map[string][]*File)
	names := make([]string, 0, len(cfg.Files))
	for name := range cfg.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content := []byte(cfg.Files[name])
		full := NormalizePath(path.Join(root, name))
		syntax, err := parser.ParseFile(fset, full, content, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		dir := path.Dir(path.Clean(name))
		byDir[dir] = append(byDir[dir], &File{
			Path:      full,
			Syntax:    syntax,
			Content:   content,
			Hash:      hashContent(content),
			Generated: IsGenerated(content),
		})
	}

	requires, versions := splitRequires(cfg.Requires)

	pkgs := make(map[string]*Package, len(byDir))
	for dir, files := range byDir {
		importPath := cfg.Module
		if dir != "." {
			importPath = cfg.Module + "/" + dir
		}
		pkgs[importPath] = &Package{
			Path:     importPath,
			Name:     files[0].Syntax.Name.Name,
			Dir:      path.Join(root, dir),
			Files:    files,
			Imports:  directImports(files),
			Manifest: Manifest{Requires: requires, Versions: versions},
		}
	}

	checker := &sourceChecker{
		fset:     fset,
		pkgs:     pkgs,
		fallback: importer.ForCompiler(fset, "source", nil),
		checking: make(map[string]bool),
	}
	for _, importPath := range sortedPackagePaths(pkgs) {
		if _, err := checker.check(importPath); err != nil {
			return nil, err
		}
	}

	snap := &Snapshot{
		Assembly: Assembly{Name: cfg.Module, Version: cfg.Version},
		Fset:     fset,
	}
	if snap.Assembly.Version == "" {
		snap.Assembly.Version = UnspecifiedVersion
	}
	for _, importPath := range sortedPackagePaths(pkgs) {
		p := pkgs[importPath]
		p.Manifest.Imports = importClosure(p.Types)
		snap.Packages = append(snap.Packages, p)
	}
	finish(snap)
	return snap, nil
}

type sourceChecker struct {
	fset     *token.FileSet
	pkgs     map[string]*Package
	fallback types.Importer
	checking map[string]bool
}

// Import satisfies types.Importer, resolving program packages first
func (c *sourceChecker) Import(importPath string) (*types.Package, error) {
	if _, ok := c.pkgs[importPath]; ok {
		return c.check(importPath)
	}
	return c.fallback.Import(importPath)
}

func (c *sourceChecker) check(importPath string) (*types.Package, error) {
	p := c.pkgs[importPath]
	if p.Types != nil {
		return p.Types, nil
	}
	if c.checking[importPath] {
		return nil, fmt.Errorf("import cycle through %s", importPath)
	}
	c.checking[importPath] = true
	defer delete(c.checking, importPath)

	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Scopes:     make(map[ast.Node]*types.Scope),
		Instances:  make(map[*ast.Ident]types.Instance),
	}
	conf := types.Config{
		Importer: c,
		Error: func(err error) {
			p.TypeErrors = append(p.TypeErrors, err.Error())
		},
	}
	syntax := make([]*ast.File, len(p.Files))
	for i, f := range p.Files {
		syntax[i] = f.Syntax
	}
	// Errors are collected through conf.Error; the package stays usable.
	pkg, _ := conf.Check(importPath, c.fset, syntax, info)
	p.Types = pkg
	p.Info = info
	return pkg, nil
}

func directImports(files []*File) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		for _, spec := range f.Syntax.Imports {
			if imp, err := strconv.Unquote(spec.Path.Value); err == nil {
				seen[imp] = true
			}
		}
	}
	return sortedKeys(seen)
}

func sortedPackagePaths(pkgs map[string]*Package) []string {
	paths := make([]string, 0, len(pkgs))
	for p := range pkgs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TypeErrors joins the type errors of every package, for test assertions
func (s *Snapshot) TypeErrors() string {
	var errs []string
	for _, p := range s.Packages {
		errs = append(errs, p.TypeErrors...)
	}
	return strings.Join(errs, "\n")
}

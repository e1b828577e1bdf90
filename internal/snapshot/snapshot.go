// Package snapshot models one immutable view of a Go program: its parsed files,
// type information, referenced libraries, and module identity. Every generation
// pass is a pure function of a Snapshot.
package snapshot

import (
	"bytes"
	"go/ast"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strings"

	"github.com/toyz/tracegen/internal/models"
)

// UnspecifiedVersion is used when the module version cannot be determined
const UnspecifiedVersion = "unspecified"

// Assembly identifies the module being generated for
type Assembly struct {
	Name    string // module path
	Version string
}

// Snapshot is the complete input of a generation pass
type Snapshot struct {
	Assembly    Assembly
	Fset        *token.FileSet
	Packages    []*Package // sorted by import path
	Fingerprint string     // changes whenever any package changes
}

// Package returns the package with the given import path, or nil
func (s *Snapshot) Package(importPath string) *Package {
	i := sort.Search(len(s.Packages), func(i int) bool { return s.Packages[i].Path >= importPath })
	if i < len(s.Packages) && s.Packages[i].Path == importPath {
		return s.Packages[i]
	}
	return nil
}

// Position converts a token position into a normalised 1-based location
func (s *Snapshot) Position(pos token.Pos) models.Location {
	p := s.Fset.Position(pos)
	return models.Location{Path: NormalizePath(p.Filename), Line: p.Line, Column: p.Column}
}

// Package is one type-checked package of the snapshot
type Package struct {
	Path        string // import path
	Name        string // package clause name
	Dir         string // directory holding the package's files
	Files       []*File
	Types       *types.Package
	Info        *types.Info
	Imports     []string // direct imports, sorted
	Manifest    Manifest
	Fingerprint string
	TypeErrors  []string // errors reported while type-checking
}

// SourceFiles returns the files that were not produced by the generator
func (p *Package) SourceFiles() []*File {
	files := make([]*File, 0, len(p.Files))
	for _, f := range p.Files {
		if !f.Generated {
			files = append(files, f)
		}
	}
	return files
}

// File returns the file with the given normalised path, or nil
func (p *Package) File(normalized string) *File {
	for _, f := range p.Files {
		if f.Path == normalized {
			return f
		}
	}
	return nil
}

// DirectlyImports reports whether the package imports lib or one of its subpackages
func (p *Package) DirectlyImports(lib string) bool {
	for _, imp := range p.Imports {
		if matchesLibrary(imp, lib) {
			return true
		}
	}
	return false
}

// DeclaresOutsideGenerated reports whether name is declared at package scope
// by a file the generator did not produce.
func (p *Package) DeclaresOutsideGenerated(fset *token.FileSet, name string) bool {
	if p.Types == nil {
		return false
	}
	obj := p.Types.Scope().Lookup(name)
	if obj == nil || !obj.Pos().IsValid() {
		return false
	}
	file := p.File(NormalizePath(fset.Position(obj.Pos()).Filename))
	return file == nil || !file.Generated
}

// File is one parsed source file
type File struct {
	Path      string // normalised absolute path
	Syntax    *ast.File
	Content   []byte
	Hash      string // content fingerprint
	Generated bool   // carries the generator's header
}

// Base returns the file name without directories
func (f *File) Base() string {
	return path.Base(f.Path)
}

// Manifest lists the libraries a package references
type Manifest struct {
	Imports  []string // transitive import closure, sorted
	Requires []string // module requirements of the enclosing module, sorted
	Versions []string // the same requirements as path@version, sorted
}

// References reports whether lib, or a package below it, is imported or required
func (m Manifest) References(lib string) bool {
	for _, group := range [][]string{m.Imports, m.Requires} {
		for _, ref := range group {
			if matchesLibrary(ref, lib) {
				return true
			}
		}
	}
	return false
}

func matchesLibrary(ref, lib string) bool {
	return ref == lib || strings.HasPrefix(ref, lib+"/")
}

// IsGenerated reports whether content starts with the generator's header
func IsGenerated(content []byte) bool {
	for len(content) > 0 {
		line := content
		if i := bytes.IndexByte(content, '\n'); i >= 0 {
			line, content = content[:i], content[i+1:]
		} else {
			content = nil
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return string(line) == models.GeneratedHeader
	}
	return false
}

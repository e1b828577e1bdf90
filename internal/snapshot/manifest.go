package snapshot

import (
	stderrors "errors"
	"fmt"
	"go/types"
	"os"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/toyz/tracegen/internal/errors"
)

// importClosure returns every package path reachable from pkg's imports
func importClosure(pkg *types.Package) []string {
	if pkg == nil {
		return nil
	}
	seen := make(map[string]bool)
	var walk func(p *types.Package)
	walk = func(p *types.Package) {
		for _, imp := range p.Imports() {
			if seen[imp.Path()] {
				continue
			}
			seen[imp.Path()] = true
			walk(imp)
		}
	}
	walk(pkg)
	return sortedKeys(seen)
}

// ModuleFile is the part of a go.mod the engine consumes
type ModuleFile struct {
	Path     string
	Requires []string // sorted, duplicates removed
	Versions []string // path@version of every requirement, sorted
}

// ReadModuleFile parses the go.mod at path with golang.org/x/mod/modfile
func ReadModuleFile(path string) (*ModuleFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read go.mod file: %w", err)
	}
	return ParseModuleFile(path, content)
}

// ParseModuleFile parses go.mod content
func ParseModuleFile(path string, content []byte) (*ModuleFile, error) {
	f, err := modfile.ParseLax(path, content, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod file: %w", err)
	}
	if f.Module == nil {
		return nil, fmt.Errorf("no module declaration found in %s", path)
	}
	seen := make(map[string]bool, len(f.Require))
	versions := make(map[string]bool, len(f.Require))
	for _, req := range f.Require {
		seen[req.Mod.Path] = true
		versions[req.Mod.String()] = true
	}
	return &ModuleFile{
		Path:     f.Module.Mod.Path,
		Requires: sortedKeys(seen),
		Versions: sortedKeys(versions),
	}, nil
}

// splitRequires separates path@version requirements into sorted paths and
// versioned entries. Entries without a version only contribute a path.
func splitRequires(reqs []string) (paths, versions []string) {
	seen := make(map[string]bool, len(reqs))
	versioned := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		p, v, ok := strings.Cut(req, "@")
		seen[p] = true
		if ok && v != "" {
			versioned[req] = true
		}
	}
	return sortedKeys(seen), sortedKeys(versioned)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// moduleErrorLocation returns the position of the first go.mod syntax error
func moduleErrorLocation(err error) (errors.SourceLocation, bool) {
	var list modfile.ErrorList
	if !stderrors.As(err, &list) || len(list) == 0 {
		return errors.SourceLocation{}, false
	}
	return errors.SourceLocation{File: list[0].Filename, Line: list[0].Pos.Line, Column: list[0].Pos.LineRune}, true
}

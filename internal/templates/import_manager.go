package templates

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/resolver"
)

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// ImportManager collects the imports of one generated file and chooses their
// aliases. Aliases are assigned from the sorted set of paths, so the result does
// not depend on the order imports were added in.
type ImportManager struct {
	names    map[string]string // path -> package name
	reserved map[string]bool   // identifiers an alias must not shadow
	aliases  map[string]string // path -> alias, nil until resolved
}

// NewImportManager creates an import manager that avoids the reserved names
func NewImportManager(reserved ...string) *ImportManager {
	im := &ImportManager{
		names:    make(map[string]string),
		reserved: make(map[string]bool),
	}
	im.Reserve(reserved...)
	return im
}

// Reserve marks identifiers declared in the receiving package
func (im *ImportManager) Reserve(names ...string) {
	for _, n := range names {
		im.reserved[n] = true
	}
	im.aliases = nil
}

// AddImport registers a package path with its declared name. An empty name is
// guessed from the path.
func (im *ImportManager) AddImport(importPath, name string) {
	if importPath == "" {
		return
	}
	if name == "" {
		if _, ok := im.names[importPath]; ok {
			return
		}
		name = GuessPackageName(importPath)
	}
	im.names[importPath] = name
	im.aliases = nil
}

// AddRefs registers every import a rendered type needs
func (im *ImportManager) AddRefs(refs ...models.TypeRef) {
	for _, ref := range refs {
		for _, imp := range ref.Imports {
			im.AddImport(imp.Path, imp.Name)
		}
	}
}

// Collect registers every marked path found in src that is not known yet
func (im *ImportManager) Collect(src string) {
	resolver.ExpandImports(src, func(p string) string {
		im.AddImport(p, "")
		return ""
	})
}

// Alias returns the identifier chosen for importPath
func (im *ImportManager) Alias(importPath string) string {
	im.resolve()
	if alias, ok := im.aliases[importPath]; ok {
		return alias
	}
	return GuessPackageName(importPath)
}

// Expand replaces every import marker in src with its alias
func (im *ImportManager) Expand(src string) string {
	return resolver.ExpandImports(src, im.Alias)
}

func (im *ImportManager) resolve() {
	if im.aliases != nil {
		return
	}
	im.aliases = make(map[string]string, len(im.names))
	taken := make(map[string]bool)
	for _, p := range im.sortedPaths() {
		base := im.names[p]
		alias := base
		for n := 2; taken[alias] || im.reserved[alias]; n++ {
			alias = base + strconv.Itoa(n)
		}
		taken[alias] = true
		im.aliases[p] = alias
	}
}

func (im *ImportManager) sortedPaths() []string {
	paths := make([]string, 0, len(im.names))
	for p := range im.names {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GenerateImports generates the import section, standard library first
func (im *ImportManager) GenerateImports() string {
	if len(im.names) == 0 {
		return ""
	}
	im.resolve()

	var std, external []string
	for _, p := range im.sortedPaths() {
		line := strconv.Quote(p)
		if alias := im.aliases[p]; alias != path.Base(p) {
			line = alias + " " + line
		}
		if isStandardLibrary(p) {
			std = append(std, line)
		} else {
			external = append(external, line)
		}
	}

	if len(std)+len(external) == 1 {
		return fmt.Sprintf("import %s\n", append(std, external...)[0])
	}

	var result strings.Builder
	result.WriteString("import (\n")
	for _, imp := range std {
		result.WriteString("\t" + imp + "\n")
	}
	if len(std) > 0 && len(external) > 0 {
		result.WriteString("\n")
	}
	for _, imp := range external {
		result.WriteString("\t" + imp + "\n")
	}
	result.WriteString(")\n")
	return result.String()
}

// GuessPackageName derives the usual package name from an import path:
// github.com/labstack/echo/v4 is echo, gopkg.in/yaml.v3 is yaml.
func GuessPackageName(importPath string) string {
	parts := strings.Split(importPath, "/")
	name := parts[len(parts)-1]
	if majorVersion.MatchString(name) && len(parts) > 1 {
		name = parts[len(parts)-2]
	}
	if i := strings.Index(name, ".v"); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.NewReplacer("-", "", ".", "").Replace(name)
	if name == "" {
		return "pkg"
	}
	return name
}

func isStandardLibrary(importPath string) bool {
	first := importPath
	if i := strings.Index(importPath, "/"); i >= 0 {
		first = importPath[:i]
	}
	return !strings.Contains(first, ".")
}

package snapshot

import (
	"context"
	"fmt"
	"go/token"
	"os"
	"path"
	"sort"

	"golang.org/x/tools/go/packages"

	"github.com/toyz/tracegen/internal/errors"
)

// LoadConfig controls how packages are loaded from disk
type LoadConfig struct {
	Dir      string   // working directory for the go command
	Patterns []string // package patterns, ./... when empty
	Module   string   // overrides the module path reported by go.mod
	Version  string   // module version, UnspecifiedVersion when empty
	Env      []string // extra environment for the go command
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports |
	packages.NeedModule

// Load type-checks the packages matching cfg.Patterns and builds a snapshot
func Load(ctx context.Context, cfg LoadConfig) (*Snapshot, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	fset := token.NewFileSet()
	pcfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     cfg.Dir,
		Fset:    fset,
	}
	if len(cfg.Env) > 0 {
		pcfg.Env = append(os.Environ(), cfg.Env...)
	}

	loaded, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, errors.WrapLoadError(patterns, err)
	}
	if len(loaded) == 0 {
		return nil, errors.WrapLoadError(patterns, fmt.Errorf("no packages matched"))
	}

	snap := &Snapshot{Fset: fset}
	modules := make(map[string]*ModuleFile)
	seen := make(map[string]bool)

	for _, lp := range loaded {
		if lp.Types == nil || seen[lp.PkgPath] || len(lp.Syntax) == 0 {
			continue
		}
		seen[lp.PkgPath] = true

		pkg := &Package{
			Path:  lp.PkgPath,
			Name:  lp.Name,
			Types: lp.Types,
			Info:  lp.TypesInfo,
		}
		for _, e := range lp.Errors {
			pkg.TypeErrors = append(pkg.TypeErrors, e.Error())
		}

		for _, syntax := range lp.Syntax {
			filename := fset.Position(syntax.Package).Filename
			content, err := os.ReadFile(filename)
			if err != nil {
				return nil, errors.WrapFileSystemError("read", filename, err)
			}
			pkg.Files = append(pkg.Files, &File{
				Path:      NormalizePath(filename),
				Syntax:    syntax,
				Content:   content,
				Hash:      hashContent(content),
				Generated: IsGenerated(content),
			})
		}
		sort.Slice(pkg.Files, func(i, j int) bool { return pkg.Files[i].Path < pkg.Files[j].Path })
		pkg.Dir = path.Dir(pkg.Files[0].Path)

		for imp := range lp.Imports {
			pkg.Imports = append(pkg.Imports, imp)
		}
		sort.Strings(pkg.Imports)

		pkg.Manifest.Imports = importClosure(lp.Types)
		if lp.Module != nil {
			if snap.Assembly.Name == "" {
				snap.Assembly = Assembly{Name: lp.Module.Path, Version: lp.Module.Version}
			}
			if lp.Module.GoMod != "" {
				mod, ok := modules[lp.Module.GoMod]
				if !ok {
					mod, err = ReadModuleFile(lp.Module.GoMod)
					if err != nil {
						wrapped := errors.WrapParseError(lp.Module.GoMod, err)
						if loc, ok := moduleErrorLocation(err); ok {
							wrapped = wrapped.WithLocation(loc)
						}
						return nil, wrapped
					}
					modules[lp.Module.GoMod] = mod
				}
				pkg.Manifest.Requires = mod.Requires
				pkg.Manifest.Versions = mod.Versions
			}
		}

		snap.Packages = append(snap.Packages, pkg)
	}

	if cfg.Module != "" {
		snap.Assembly.Name = cfg.Module
	}
	if cfg.Version != "" {
		snap.Assembly.Version = cfg.Version
	}
	if snap.Assembly.Version == "" {
		snap.Assembly.Version = UnspecifiedVersion
	}

	finish(snap)
	return snap, nil
}

// finish orders packages and computes fingerprints
func finish(snap *Snapshot) {
	sort.Slice(snap.Packages, func(i, j int) bool { return snap.Packages[i].Path < snap.Packages[j].Path })
	fingerprintPackages(snap.Packages)
	snap.Fingerprint = fingerprintSnapshot(snap)
}

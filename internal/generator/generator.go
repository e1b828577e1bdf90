// Package generator runs one generation pass: scanning, resolution and every
// synthesis component over a snapshot. A pass is a pure function of the
// snapshot and the options; its stages are memoised in a pipeline graph.
package generator

import (
	"fmt"
	"path"
	"sort"
	"strings"

	tgerrors "github.com/toyz/tracegen/internal/errors"
	"github.com/toyz/tracegen/internal/glue"
	"github.com/toyz/tracegen/internal/intercept"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/pipeline"
	"github.com/toyz/tracegen/internal/resolver"
	"github.com/toyz/tracegen/internal/scanner"
	"github.com/toyz/tracegen/internal/snapshot"
	"github.com/toyz/tracegen/internal/synth"
	"github.com/toyz/tracegen/internal/typemap"
)

// Stage names reported in pipeline stats
const (
	StagePass    = "pass"
	StageScan    = "scan"
	StageResolve = "resolve"
	StagePackage = "package"
)

// Options configure a pass. They are part of the pass key.
type Options struct {
	Hooks     synth.Hooks
	Intercept bool     // generate call-site interceptors
	Exclude   []string // package patterns, matched against import and module-relative paths
}

// Result is the output of one pass
type Result struct {
	Units       []*models.Unit // sorted by directory and file name
	Diagnostics []models.Diagnostic
}

// Generator runs passes against a pipeline graph
type Generator struct {
	graph *pipeline.Graph
	opts  Options
	glue  *glue.Registry
}

// NewGenerator creates a generator memoising into graph
func NewGenerator(graph *pipeline.Graph, opts Options) *Generator {
	if graph == nil {
		graph = pipeline.NewGraph(nil)
	}
	opts.Hooks = opts.Hooks.WithDefaults()
	return &Generator{graph: graph, opts: opts, glue: glue.NewRegistry()}
}

// Stats returns the cache counters of every stage run so far
func (g *Generator) Stats() pipeline.Stats {
	return g.graph.Stats()
}

type passInput struct {
	Fingerprint string
	Assembly    snapshot.Assembly
	Options     Options

	snap *snapshot.Snapshot
}

// Generate runs a pass over snap. An unchanged snapshot is served entirely
// from the memo store.
func (g *Generator) Generate(snap *snapshot.Snapshot) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}
	if err := g.opts.Hooks.Validate(); err != nil {
		return nil, err
	}
	stage := pipeline.Stage[passInput, *Result]{
		Name:    StagePass,
		Version: 1,
		Run:     g.run,
	}
	return pipeline.Eval(g.graph, stage, passInput{
		Fingerprint: snap.Fingerprint,
		Assembly:    snap.Assembly,
		Options:     g.opts,
		snap:        snap,
	})
}

func (g *Generator) run(in passInput) (*Result, error) {
	snap := in.snap
	known := make(map[string]bool, len(snap.Packages))
	for _, p := range snap.Packages {
		known[p.Path] = true
	}

	var pkgModels []*resolver.PackageModel
	for _, p := range snap.Packages {
		if Excluded(snap.Assembly.Name, p.Path, g.opts.Exclude) {
			continue
		}
		model, err := g.resolve(snap, p, known)
		if err != nil {
			return nil, err
		}
		pkgModels = append(pkgModels, model)
	}

	tracked := make(map[string]bool)
	var impls []models.ImplementationDescriptor
	for _, m := range pkgModels {
		for _, member := range m.Members {
			tracked[member] = true
		}
		impls = append(impls, m.Implementations...)
	}

	res := &Result{}
	for _, m := range pkgModels {
		snapPkg := snap.Package(m.Path)
		out, err := pipeline.Eval(g.graph, pipeline.Stage[packageInput, packageOutput]{
			Name:    StagePackage,
			Version: 1,
			Run:     g.generatePackage,
		}, packageInput{
			Model:           m,
			Implementations: implementationsOf(m, impls),
			Tracked:         trackedTargets(m, tracked),
			Imports:         snapPkg.Imports,
			Manifest:        snapPkg.Manifest,
			Assembly:        snap.Assembly,
			Options:         g.opts,
		})
		if err != nil {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, m.Diagnostics...)
		res.Diagnostics = append(res.Diagnostics, out.Diagnostics...)
		res.Units = append(res.Units, out.Units...)
	}

	SortUnits(res.Units)
	return res, nil
}

type scanInput struct {
	Path string
	Hash string

	file *snapshot.File
}

type resolveInput struct {
	Path        string
	Fingerprint string
	Known       []string

	snap  *snapshot.Snapshot
	pkg   *snapshot.Package
	files []scanner.FileCandidates
}

func (g *Generator) resolve(snap *snapshot.Snapshot, p *snapshot.Package, known map[string]bool) (*resolver.PackageModel, error) {
	scanStage := pipeline.Stage[scanInput, scanner.FileCandidates]{
		Name:    StageScan,
		Version: 1,
		Key: func(in scanInput) ([]byte, error) {
			return []byte(in.Path + "\x00" + in.Hash), nil
		},
		Run: func(in scanInput) (scanner.FileCandidates, error) {
			return scanner.ScanFile(snap.Fset, in.Path, in.file.Syntax), nil
		},
	}

	var files []scanner.FileCandidates
	for _, f := range p.SourceFiles() {
		fc, err := pipeline.Eval(g.graph, scanStage, scanInput{Path: f.Path, Hash: f.Hash, file: f})
		if err != nil {
			return nil, err
		}
		files = append(files, fc)
	}

	knownList := make([]string, 0, len(known))
	for k := range known {
		knownList = append(knownList, k)
	}
	sort.Strings(knownList)

	return pipeline.Eval(g.graph, pipeline.Stage[resolveInput, *resolver.PackageModel]{
		Name:    StageResolve,
		Version: 1,
		Run: func(in resolveInput) (*resolver.PackageModel, error) {
			return resolver.Resolve(in.snap, in.pkg, in.files, known), nil
		},
	}, resolveInput{
		Path:        p.Path,
		Fingerprint: p.Fingerprint,
		Known:       knownList,
		snap:        snap,
		pkg:         p,
		files:       files,
	})
}

type packageInput struct {
	Model           *resolver.PackageModel
	Implementations []models.ImplementationDescriptor
	Tracked         []string
	Imports         []string
	Manifest        snapshot.Manifest
	Assembly        snapshot.Assembly
	Options         Options
}

type packageOutput struct {
	Units       []*models.Unit
	Diagnostics []models.Diagnostic
}

func (out *packageOutput) add(unit *models.Unit, diags []models.Diagnostic) {
	out.Diagnostics = append(out.Diagnostics, diags...)
	if unit != nil {
		out.Units = append(out.Units, unit)
	}
}

// generatePackage runs every synthesis component over one resolved package
func (g *Generator) generatePackage(in packageInput) (packageOutput, error) {
	m := in.Model
	var out packageOutput

	s := synth.New(in.Options.Hooks)
	var decorated []models.InterfaceDescriptor
	for _, iface := range m.Interfaces {
		unit, diags, err := s.Synthesize(iface, m.Declared)
		if err != nil {
			return out, tgerrors.WrapGenerateError(synth.TypeName(iface.Name), err).WithContext("interface", iface.ID)
		}
		if unit != nil {
			decorated = append(decorated, iface)
		}
		out.add(unit, diags)
	}

	entries := typemap.Entries(decorated, in.Implementations)
	unit, diags, err := typemap.Generate(m.Path, m.Name, m.Dir, m.Declared, entries)
	if err != nil {
		return out, fmt.Errorf("failed to generate type map for %s: %w", m.Path, err)
	}
	out.add(unit, diags)

	glueUnits, diags, err := g.glue.Emit(glue.Input{
		Path:     m.Path,
		Name:     m.Name,
		Dir:      m.Dir,
		Imports:  in.Imports,
		Manifest: in.Manifest,
		Declared: m.Declared,
		Entries:  entries,
	})
	if err != nil {
		return out, err
	}
	out.Units = append(out.Units, glueUnits...)
	out.Diagnostics = append(out.Diagnostics, diags...)

	if in.Options.Intercept {
		tracked := make(map[string]bool, len(in.Tracked))
		for _, t := range in.Tracked {
			tracked[t] = true
		}
		ig := intercept.New(in.Options.Hooks)
		for _, site := range intercept.Select(m.Calls, tracked) {
			unit, diags, err := ig.Generate(site, m.Declared)
			if err != nil {
				return out, fmt.Errorf("failed to generate interceptor at %s: %w", site.Location, err)
			}
			out.add(unit, diags)
		}
	}

	if glue.ReferencesDefaultSource(out.Units) {
		unit, diags, err := glue.DefaultSource(glue.DefaultSourceInput{
			Path:             m.Path,
			Name:             m.Name,
			Dir:              m.Dir,
			Module:           in.Assembly.Name,
			Version:          in.Assembly.Version,
			HasDefaultSource: m.HasDefaultSource,
		})
		if err != nil {
			return out, err
		}
		out.add(unit, diags)
	}
	return out, nil
}

// implementationsOf keeps the assertions of m's interfaces
func implementationsOf(m *resolver.PackageModel, impls []models.ImplementationDescriptor) []models.ImplementationDescriptor {
	ids := make(map[string]bool, len(m.Interfaces))
	for _, iface := range m.Interfaces {
		ids[iface.ID] = true
	}
	var out []models.ImplementationDescriptor
	for _, impl := range impls {
		if ids[impl.Interface] {
			out = append(out, impl)
		}
	}
	return out
}

// trackedTargets keeps the tracked members m's calls refer to, so a package's
// key only changes with the members it actually calls
func trackedTargets(m *resolver.PackageModel, tracked map[string]bool) []string {
	seen := make(map[string]bool)
	for _, c := range m.Calls {
		for _, id := range []string{c.Target, c.TargetOrigin} {
			if tracked[id] {
				seen[id] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Excluded reports whether pkgPath matches one of the exclude patterns. A
// pattern matches the import path or the path relative to module, and a
// trailing /... also covers sub-packages.
func Excluded(module, pkgPath string, patterns []string) bool {
	rel := strings.TrimPrefix(strings.TrimPrefix(pkgPath, module), "/")
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/...")
		for _, candidate := range []string{pkgPath, rel} {
			if ok, _ := path.Match(pattern, candidate); ok {
				return true
			}
			if candidate == pattern || strings.HasPrefix(candidate, pattern+"/") {
				return true
			}
		}
	}
	return false
}

// SortUnits orders units by directory, then file name
func SortUnits(units []*models.Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Dir != units[j].Dir {
			return units[i].Dir < units[j].Dir
		}
		return units[i].FileName() < units[j].FileName()
	})
}

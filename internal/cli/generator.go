package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/toyz/tracegen/internal/emit"
	"github.com/toyz/tracegen/internal/generator"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/pipeline"
	"github.com/toyz/tracegen/internal/snapshot"
	"github.com/toyz/tracegen/internal/store"
	"github.com/toyz/tracegen/internal/utils"
)

// LoadFunc builds the snapshot for a run
type LoadFunc func(ctx context.Context, cfg snapshot.LoadConfig) (*snapshot.Snapshot, error)

// Generator coordinates the CLI generation process
type Generator struct {
	moduleResolver *ModuleResolver
	reporter       *DiagnosticReporter
	diagnostics    *utils.DiagnosticSystem
	load           LoadFunc
	summary        GenerationSummary
}

// NewGenerator creates a new CLI generator
func NewGenerator(verbose bool) *Generator {
	level := utils.DiagnosticInfo
	if verbose {
		level = utils.DiagnosticVerbose
	}
	return NewGeneratorWithDiagnostics(verbose, utils.NewDiagnosticSystem(level))
}

// NewGeneratorWithDiagnostics creates a new CLI generator with the given diagnostic system
func NewGeneratorWithDiagnostics(verbose bool, diagnostics *utils.DiagnosticSystem) *Generator {
	return &Generator{
		moduleResolver: NewModuleResolver(),
		reporter:       NewDiagnosticReporter(verbose),
		diagnostics:    diagnostics,
		load:           snapshot.Load,
	}
}

// SetLoader replaces the package loader, snapshot.Load by default
func (g *Generator) SetLoader(load LoadFunc) {
	g.load = load
}

// SetReporter replaces the reporter engine diagnostics are printed through
func (g *Generator) SetReporter(reporter *DiagnosticReporter) {
	g.reporter = reporter
}

// GetSummary returns the generation summary
func (g *Generator) GetSummary() GenerationSummary {
	return g.summary
}

// Reporter returns the reporter used for errors and engine diagnostics
func (g *Generator) Reporter() *DiagnosticReporter {
	return g.reporter
}

// Run executes the complete generation process
func (g *Generator) Run(ctx context.Context, config Config) error {
	startTime := time.Now()
	g.summary = GenerationSummary{}

	dir := config.Dir
	if dir == "" {
		dir = "."
	}
	g.diagnostics.Verbose("Starting code generation at %s", startTime.Format("15:04:05"))
	g.diagnostics.Debug("Package patterns: %v", config.Patterns)

	g.diagnostics.StartProgress("Resolving module name")
	moduleName, err := g.moduleResolver.ResolveModuleNameFrom(dir, config.ModuleName)
	if err != nil {
		g.diagnostics.EndProgress(false, "")
		return &models.GeneratorError{
			Type:    models.ErrorTypeValidation,
			Message: fmt.Sprintf("Failed to resolve module name: %v", err),
			Cause:   err,
			Suggestions: []string{
				"Check your go.mod file exists and is valid",
				"Ensure you're running from the correct directory",
				"Try specifying --module flag explicitly",
			},
			Context: map[string]interface{}{
				"provided_module": config.ModuleName,
				"dir":             dir,
			},
		}
	}
	g.diagnostics.EndProgress(true, fmt.Sprintf("Module %s", moduleName))

	if err := config.Hooks.WithDefaults().Validate(); err != nil {
		return &models.GeneratorError{
			Type:        models.ErrorTypeConfiguration,
			Message:     fmt.Sprintf("Invalid hook template: %v", err),
			Cause:       err,
			Suggestions: []string{"Hooks may only reference {{.Ctx}}, {{.SpanName}} and {{.Err}}"},
		}
	}

	g.diagnostics.StartProgress("Loading packages")
	snap, err := g.load(ctx, snapshot.LoadConfig{
		Dir:      dir,
		Patterns: config.Patterns,
		Module:   moduleName,
		Version:  config.Version,
	})
	if err != nil {
		g.diagnostics.EndProgress(false, "")
		return &models.GeneratorError{
			Type:    models.ErrorTypeLoad,
			Message: "Failed to load packages",
			Cause:   err,
			Suggestions: []string{
				"Run 'go build' on the target packages to surface compile errors",
				"Check the package patterns passed on the command line",
			},
			Context: map[string]interface{}{"patterns": config.Patterns},
		}
	}
	g.summary.PackagesProcessed = len(snap.Packages)
	g.diagnostics.EndProgress(true, fmt.Sprintf("Loaded %d packages", len(snap.Packages)))
	for _, p := range snap.Packages {
		for _, typeErr := range p.TypeErrors {
			g.diagnostics.Verbose("%s: %s", p.Path, typeErr)
		}
	}

	st, err := store.Open(config.CacheDir)
	if err != nil {
		return &models.GeneratorError{
			Type:        models.ErrorTypeCache,
			Message:     "Failed to open the generation cache",
			Cause:       err,
			Suggestions: []string{"Remove the cache directory and run again"},
			Context:     map[string]interface{}{"path": config.CacheDir},
		}
	}
	defer st.Close()

	graph := pipeline.NewGraph(st)
	gen := generator.NewGenerator(graph, generator.Options{
		Hooks:     config.Hooks,
		Intercept: config.Intercept,
		Exclude:   config.Exclude,
	})

	g.diagnostics.StartProgress("Generating units")
	result, err := gen.Generate(snap)
	if err != nil {
		g.diagnostics.EndProgress(false, "")
		return &models.GeneratorError{
			Type:    models.ErrorTypeGeneration,
			Message: "Generation pass failed",
			Cause:   err,
		}
	}
	g.summary.CacheStats = gen.Stats().String()
	g.diagnostics.EndProgress(true, fmt.Sprintf("Generated %d units", len(result.Units)))
	g.diagnostics.Debug("Cache: %s", g.summary.CacheStats)

	set, collisions := emit.NewOutputSet(result.Units)
	diags := append(append([]models.Diagnostic(nil), result.Diagnostics...), collisions...)
	warnings, errs := g.reporter.ReportDiagnostics(diags)
	g.summary.Warnings = warnings
	g.count(set)
	if errs > 0 {
		return &models.GeneratorError{
			Type:        models.ErrorTypeGeneration,
			Message:     fmt.Sprintf("%d generation errors were reported", errs),
			Suggestions: []string{"Rename the entities listed above so their generated files differ"},
		}
	}

	overlayDir := config.OverlayDir
	if overlayDir != "" && !filepath.IsAbs(overlayDir) {
		overlayDir = filepath.Join(dir, overlayDir)
	}
	if len(set.Interceptors) > 0 && overlayDir == "" {
		g.reporter.ReportWarning(
			fmt.Sprintf("%d interceptors were generated but no overlay directory is set", len(set.Interceptors)),
			"Pass --overlay <dir> and build with go build -overlay <dir>/overlay.json",
		)
	}

	writer := &emit.Writer{
		Dirs:       packageDirs(snap, config.Exclude),
		OverlayDir: overlayDir,
		ReadFile:   snapshotReader(snap),
		Check:      config.Check,
	}
	g.diagnostics.StartProgress("Writing generated files")
	report, err := writer.Emit(ctx, set)
	if err != nil {
		g.diagnostics.EndProgress(false, "")
		return &models.GeneratorError{
			Type:    models.ErrorTypeFileSystem,
			Message: "Failed to write generated files",
			Cause:   err,
		}
	}
	g.diagnostics.EndProgress(true, "")

	g.summary.GeneratedFiles = report.Written
	g.summary.UnchangedFiles = report.Unchanged
	g.summary.RemovedFiles = report.Removed
	g.summary.OverlayManifest = report.Overlay
	g.summary.RewrittenCalls = report.Rewritten
	for _, loc := range report.Unmatched {
		g.reporter.ReportWarning(fmt.Sprintf("interceptor tag at %s matched no call expression", loc))
	}

	if config.Check {
		texts := make([]string, len(report.Diffs))
		for i, d := range report.Diffs {
			texts[i] = d.Text
		}
		g.reporter.ReportDiffs(texts)
		if !report.Clean() {
			return &models.GeneratorError{
				Type:        models.ErrorTypeValidation,
				Message:     fmt.Sprintf("%d generated files are out of date", len(report.Diffs)),
				Suggestions: []string{"Run tracegen without --check to update them"},
			}
		}
	}

	g.diagnostics.Verbose("Generation finished in %s", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func (g *Generator) count(set *emit.OutputSet) {
	g.summary.Interceptors = len(set.Interceptors)
	for _, u := range set.Units {
		switch u.Kind {
		case models.UnitDecorator:
			g.summary.Decorators++
		case models.UnitTypeMap:
			g.summary.TypeMaps++
		case models.UnitGlue:
			g.summary.Glue++
		case models.UnitDefaultSource:
			g.summary.DefaultSources++
		}
	}
}

// Clean removes generated files from dirs. Directories ending in /... are
// cleaned recursively.
func (g *Generator) Clean(dirs []string) ([]string, error) {
	removed, err := emit.NewCleaner().CleanGeneratedFiles(dirs)
	if err != nil {
		return removed, &models.GeneratorError{
			Type:    models.ErrorTypeFileSystem,
			Message: "Clean operation failed",
			Cause:   err,
		}
	}
	return removed, nil
}

// packageDirs lists the directories owned by this run. Excluded packages keep
// whatever generated files they already have.
func packageDirs(snap *snapshot.Snapshot, exclude []string) []string {
	dirs := make([]string, 0, len(snap.Packages))
	for _, p := range snap.Packages {
		if generator.Excluded(snap.Assembly.Name, p.Path, exclude) {
			continue
		}
		dirs = append(dirs, p.Dir)
	}
	return dirs
}

// snapshotReader serves caller sources from the snapshot so the overlay is
// built from the content that was analysed
func snapshotReader(snap *snapshot.Snapshot) func(string) ([]byte, error) {
	return func(normalized string) ([]byte, error) {
		for _, p := range snap.Packages {
			if f := p.File(normalized); f != nil {
				return f.Content, nil
			}
		}
		return os.ReadFile(snapshot.NativePath(normalized))
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/toyz/tracegen/internal/cli"
	"github.com/toyz/tracegen/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// stringList collects a repeatable flag
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("tracegen", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var exclude stringList
	var (
		moduleFlag    = flags.String("module", "", "Custom module name (defaults to go.mod module)")
		versionFlag   = flags.String("version", "", "Module version recorded in DefaultTracer")
		configFlag    = flags.String("config", "", "Config file (defaults to "+cli.DefaultConfigFile+" when present)")
		interceptFlag = flags.Bool("intercept", false, "Generate call-site interceptors for concrete methods")
		overlayFlag   = flags.String("overlay", "", "Directory for the go build -overlay manifest and interceptors")
		cacheDirFlag  = flags.String("cache-dir", "", "Directory for the persistent generation cache")
		checkFlag     = flags.Bool("check", false, "Report out of date generated files without writing")
		cleanFlag     = flags.Bool("clean", false, "Delete all generated autogen_*.go files from the specified directories")
		verboseFlag   = flags.Bool("verbose", false, "Enable verbose output and detailed error reporting")
		quietFlag     = flags.Bool("quiet", false, "Only show errors and final results")
		helpFlag      = flags.Bool("help", false, "Show help information")
	)
	flags.Var(&exclude, "exclude", "Package pattern to skip (repeatable)")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tracegen [options] [package-patterns...]\n\n")
		fmt.Fprintf(stderr, "Tracing Decorator Generator\n")
		fmt.Fprintf(stderr, "Generates OpenTelemetry decorators, type maps and registration glue for interfaces.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nArguments:\n")
		fmt.Fprintf(stderr, "  package-patterns   Go package patterns to generate for (default ./...)\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  tracegen ./...                                  # Generate for every package\n")
		fmt.Fprintf(stderr, "  tracegen --version v1.4.0 ./internal/...        # Record a version in DefaultTracer\n")
		fmt.Fprintf(stderr, "  tracegen --intercept --overlay .overlay ./...   # Also intercept concrete calls\n")
		fmt.Fprintf(stderr, "  tracegen --check ./...                          # Fail when generated files are stale\n")
		fmt.Fprintf(stderr, "  tracegen --clean ./...                          # Delete all generated files\n")
	}

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if *helpFlag {
		flags.Usage()
		return 0
	}
	if *quietFlag && *verboseFlag {
		fmt.Fprintf(stderr, "Error: --quiet and --verbose cannot be combined\n\n")
		flags.Usage()
		return 2
	}

	patterns := flags.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	// Create diagnostic system based on flags
	var diagnostics *utils.DiagnosticSystem
	switch {
	case *quietFlag:
		diagnostics = utils.NewDiagnosticSystemWithWriters(utils.DiagnosticError, stdout, stderr)
	case *verboseFlag:
		diagnostics = utils.NewDiagnosticSystemWithWriters(utils.DiagnosticVerbose, stdout, stderr)
	default:
		diagnostics = utils.NewDiagnosticSystemWithWriters(utils.DiagnosticInfo, stdout, stderr)
	}

	generator := cli.NewGeneratorWithDiagnostics(*verboseFlag, diagnostics)
	generator.SetReporter(cli.NewDiagnosticReporterWithWriters(*verboseFlag, stdout, stderr))

	diagnostics.Header("Tracing Decorator Generator")

	if *cleanFlag {
		diagnostics.StartProgress("Cleaning generated files")
		removed, err := generator.Clean(patterns)
		if err != nil {
			diagnostics.EndProgress(false, "")
			generator.Reporter().ReportError(err)
			return 1
		}
		diagnostics.EndProgress(true, fmt.Sprintf("Removed %d generated files", len(removed)))
		for _, file := range removed {
			diagnostics.Verbose("removed %s", file)
		}
		return 0
	}

	set := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	config := cli.Config{
		Dir:        ".",
		Patterns:   patterns,
		ModuleName: *moduleFlag,
		Version:    *versionFlag,
		Intercept:  *interceptFlag,
		OverlayDir: *overlayFlag,
		CacheDir:   *cacheDirFlag,
		Exclude:    exclude,
		Check:      *checkFlag,
		Verbose:    *verboseFlag,
	}
	fileConfig, configPath, err := cli.FindFileConfig(*configFlag, config.Dir)
	if err != nil {
		generator.Reporter().ReportError(err)
		return 1
	}
	config = config.Apply(fileConfig, func(name string) bool { return set[name] })

	if *verboseFlag {
		diagnostics.Subsection("Configuration")
		diagnostics.List("Patterns: %s", strings.Join(patterns, ", "))
		if configPath != "" {
			diagnostics.List("Config file: %s", configPath)
		}
		if config.ModuleName != "" {
			diagnostics.List("Custom module: %s", config.ModuleName)
		}
		if config.CacheDir != "" {
			diagnostics.List("Cache directory: %s", config.CacheDir)
		}
		diagnostics.List("Intercept: %t", config.Intercept)
		diagnostics.List("Check mode: %t", config.Check)
	}

	diagnostics.Subsection("Code Generation")
	if err := generator.Run(ctx, config); err != nil {
		generator.Reporter().ReportError(err)
		return 1
	}

	summary := generator.GetSummary()
	diagnostics.Summary("Generation Complete!", summary.Stats())

	if *verboseFlag && len(summary.GeneratedFiles) > 0 {
		diagnostics.Subsection("Generated Files")
		for _, file := range summary.GeneratedFiles {
			diagnostics.List("%s", file)
		}
	}
	if summary.OverlayManifest != "" {
		diagnostics.Info("Build with: go build -overlay %s", summary.OverlayManifest)
	}

	diagnostics.GenerationComplete()
	return 0
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	tgerrors "github.com/toyz/tracegen/internal/errors"
	"github.com/toyz/tracegen/internal/models"
)

// DiagnosticReporter provides user-friendly error reporting and diagnostics
type DiagnosticReporter struct {
	verbose bool
	out     io.Writer
	errOut  io.Writer
}

// NewDiagnosticReporter creates a new diagnostic reporter
func NewDiagnosticReporter(verbose bool) *DiagnosticReporter {
	return NewDiagnosticReporterWithWriters(verbose, os.Stdout, os.Stderr)
}

// NewDiagnosticReporterWithWriters creates a reporter writing to the given streams
func NewDiagnosticReporterWithWriters(verbose bool, out, errOut io.Writer) *DiagnosticReporter {
	return &DiagnosticReporter{verbose: verbose, out: out, errOut: errOut}
}

// ReportWarning provides user-friendly warning reporting
func (r *DiagnosticReporter) ReportWarning(message string, suggestions ...string) {
	orange := color.New(color.FgYellow, color.Bold)
	orange.Fprint(r.errOut, "! ")
	fmt.Fprintf(r.errOut, "%s\n", message)
	if r.verbose {
		for _, s := range suggestions {
			fmt.Fprintf(r.errOut, "    %s\n", s)
		}
	}
}

// ReportDiagnostics prints engine diagnostics. Informational ones are only
// shown in verbose mode. It returns the number of warnings and errors.
func (r *DiagnosticReporter) ReportDiagnostics(diags []models.Diagnostic) (warnings, errs int) {
	for _, d := range diags {
		switch d.Severity {
		case models.SeverityError:
			errs++
			color.New(color.FgRed, color.Bold).Fprint(r.errOut, "x ")
		case models.SeverityWarning:
			warnings++
			color.New(color.FgYellow, color.Bold).Fprint(r.errOut, "! ")
		default:
			if !r.verbose {
				continue
			}
			color.New(color.FgCyan).Fprint(r.errOut, "i ")
		}
		fmt.Fprintf(r.errOut, "%s %s", d.Code, d.Message)
		if loc := formatLocation(d.Location); loc != "" {
			fmt.Fprintf(r.errOut, " (%s)", loc)
		}
		fmt.Fprintln(r.errOut)
	}
	return warnings, errs
}

func formatLocation(loc models.Location) string {
	switch {
	case loc.Path == "":
		return ""
	case loc.Line == 0:
		return loc.Path
	default:
		return loc.String()
	}
}

// ReportError provides comprehensive error reporting with user-friendly output
func (r *DiagnosticReporter) ReportError(err error) {
	fmt.Fprintf(r.errOut, "\nERROR: Code Generation Failed\n")
	fmt.Fprintf(r.errOut, "=============================\n\n")

	if genErr := r.findGeneratorError(err); genErr != nil {
		r.reportGeneratorError(genErr)
	} else {
		r.reportBasicError(err)
	}

	fmt.Fprintf(r.errOut, "\n")
}

// reportGeneratorError reports a GeneratorError with full context and suggestions
func (r *DiagnosticReporter) reportGeneratorError(genErr *models.GeneratorError) {
	r.printErrorHeader(genErr)

	fmt.Fprintf(r.errOut, "Message: %s\n\n", genErr.Message)

	// In verbose mode, show the underlying cause if available
	if r.verbose && genErr.Cause != nil {
		fmt.Fprintf(r.errOut, "Underlying cause: %s\n\n", genErr.Cause.Error())
	}

	if genErr.File != "" {
		if genErr.Line > 0 {
			fmt.Fprintf(r.errOut, "Location: %s:%d\n\n", genErr.File, genErr.Line)
		} else {
			fmt.Fprintf(r.errOut, "File: %s\n\n", genErr.File)
		}
	}

	if len(genErr.Context) > 0 {
		r.printContext(genErr.Context)
	}

	if len(genErr.Suggestions) > 0 {
		r.printSuggestions(genErr.Suggestions)
	}

	r.printAdditionalHelp(genErr.Type)

	if r.verbose {
		r.printVerboseDebuggingInfo(genErr)
	}
}

// reportBasicError reports a basic error without rich context
func (r *DiagnosticReporter) reportBasicError(err error) {
	fmt.Fprintf(r.errOut, "Message: %s\n\n", err.Error())

	errorMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errorMsg, "directive") || strings.Contains(errorMsg, "tracegen:"):
		fmt.Fprintf(r.errOut, "This appears to be a directive-related issue.\n")
		fmt.Fprintf(r.errOut, "Common solutions:\n")
		fmt.Fprintf(r.errOut, "  - Check the syntax of //tracegen: comments\n")
		fmt.Fprintf(r.errOut, "  - Remove stale autogen_*.go files with --clean\n\n")
	case strings.Contains(errorMsg, "module"):
		fmt.Fprintf(r.errOut, "This appears to be a module-related issue.\n")
		fmt.Fprintf(r.errOut, "Common solutions:\n")
		fmt.Fprintf(r.errOut, "  - Check your go.mod file\n")
		fmt.Fprintf(r.errOut, "  - Ensure module paths are correct\n")
		fmt.Fprintf(r.errOut, "  - Try specifying --module flag explicitly\n\n")
	}
}

// printErrorHeader prints a formatted error header based on error type
func (r *DiagnosticReporter) printErrorHeader(genErr *models.GeneratorError) {
	var errorTypeStr string

	switch genErr.Type {
	case models.ErrorTypeValidation:
		errorTypeStr = "Validation Error"
	case models.ErrorTypeFileSystem:
		errorTypeStr = "File System Error"
	case models.ErrorTypeLoad:
		errorTypeStr = "Package Load Error"
	case models.ErrorTypeGeneration:
		errorTypeStr = "Code Generation Error"
	case models.ErrorTypeCache:
		errorTypeStr = "Cache Error"
	case models.ErrorTypeConfiguration:
		errorTypeStr = "Configuration Error"
	default:
		errorTypeStr = "Unknown Error"
	}

	fmt.Fprintf(r.errOut, "Type: %s\n", errorTypeStr)
	fmt.Fprintf(r.errOut, "%s\n\n", strings.Repeat("-", len(errorTypeStr)+6))
}

// printContext prints context information in a readable format
func (r *DiagnosticReporter) printContext(context map[string]interface{}) {
	fmt.Fprintf(r.errOut, "Context:\n")

	importantKeys := []string{"path", "patterns", "unit", "operation"}
	printed := make(map[string]bool)

	for _, key := range importantKeys {
		if value, exists := context[key]; exists {
			fmt.Fprintf(r.errOut, "   %s: %v\n", r.formatContextKey(key), value)
			printed[key] = true
		}
	}

	rest := make([]string, 0, len(context))
	for key := range context {
		if !printed[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(r.errOut, "   %s: %v\n", r.formatContextKey(key), context[key])
	}

	fmt.Fprintf(r.errOut, "\n")
}

// formatContextKey formats context keys to be more readable
func (r *DiagnosticReporter) formatContextKey(key string) string {
	switch key {
	case "path":
		return "Path"
	case "patterns":
		return "Patterns"
	case "unit":
		return "Unit"
	case "config_type":
		return "Config File"
	default:
		// Convert snake_case to Title Case
		parts := strings.Split(key, "_")
		for i, part := range parts {
			if len(part) > 0 {
				parts[i] = strings.ToUpper(part[:1]) + part[1:]
			}
		}
		return strings.Join(parts, " ")
	}
}

// printSuggestions prints actionable suggestions
func (r *DiagnosticReporter) printSuggestions(suggestions []string) {
	fmt.Fprintf(r.errOut, "Suggestions:\n")

	for i, suggestion := range suggestions {
		lines := strings.Split(suggestion, "\n")
		fmt.Fprintf(r.errOut, "   %d. %s\n", i+1, lines[0])
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(r.errOut, "      %s\n", line)
			}
		}
	}

	fmt.Fprintf(r.errOut, "\n")
}

// printAdditionalHelp prints additional help based on error type
func (r *DiagnosticReporter) printAdditionalHelp(errorType models.ErrorType) {
	switch errorType {
	case models.ErrorTypeLoad:
		fmt.Fprintf(r.errOut, "Loading Requirements:\n")
		fmt.Fprintf(r.errOut, "  - Packages must build with 'go build'\n")
		fmt.Fprintf(r.errOut, "  - Run 'go mod tidy' to ensure dependencies are available\n\n")

	case models.ErrorTypeConfiguration:
		fmt.Fprintf(r.errOut, "Configuration Help:\n")
		fmt.Fprintf(r.errOut, "  - %s is YAML with module, version, intercept, overlay, cache_dir, exclude and hooks\n", DefaultConfigFile)
		fmt.Fprintf(r.errOut, "  - Hooks are Go statements using {{.Ctx}}, {{.SpanName}} and {{.Err}}\n\n")

	case models.ErrorTypeCache:
		fmt.Fprintf(r.errOut, "Cache Help:\n")
		fmt.Fprintf(r.errOut, "  - The cache directory is safe to delete\n")
		fmt.Fprintf(r.errOut, "  - Omit --cache-dir to use a memory-only cache\n\n")
	}

	fmt.Fprintf(r.errOut, "For more help:\n")
	fmt.Fprintf(r.errOut, "  - Run with --verbose for more detailed output\n")
	fmt.Fprintf(r.errOut, "  - Review the examples/ directory\n")
}

// findGeneratorError searches the chain for a GeneratorError. A typed
// engine error is converted so its suggestions are still printed.
func (r *DiagnosticReporter) findGeneratorError(err error) *models.GeneratorError {
	if err == nil {
		return nil
	}

	var genErr *models.GeneratorError
	if errors.As(err, &genErr) {
		return genErr
	}

	var typed tgerrors.TracegenError
	if errors.As(err, &typed) {
		loc := typed.Location()
		return &models.GeneratorError{
			Type:        errorTypeOf(typed.ErrorCode()),
			File:        loc.File,
			Line:        loc.Line,
			Message:     typed.Error(),
			Cause:       typed.Unwrap(),
			Suggestions: typed.Suggestions(),
			Context:     typed.Context(),
		}
	}
	return nil
}

func errorTypeOf(code tgerrors.ErrorCode) models.ErrorType {
	switch code {
	case tgerrors.SnapshotErrorCode, tgerrors.SyntaxErrorCode, tgerrors.ResolutionErrorCode:
		return models.ErrorTypeLoad
	case tgerrors.FileSystemErrorCode, tgerrors.OverlayErrorCode:
		return models.ErrorTypeFileSystem
	case tgerrors.CacheErrorCode:
		return models.ErrorTypeCache
	case tgerrors.ConfigurationErrorCode:
		return models.ErrorTypeConfiguration
	case tgerrors.GenerationErrorCode, tgerrors.TemplateErrorCode:
		return models.ErrorTypeGeneration
	default:
		return models.ErrorTypeValidation
	}
}

// printVerboseDebuggingInfo prints additional debugging information in verbose mode
func (r *DiagnosticReporter) printVerboseDebuggingInfo(genErr *models.GeneratorError) {
	fmt.Fprintf(r.errOut, "Verbose Debug Information:\n")
	fmt.Fprintf(r.errOut, "  Error Type Code: %d\n", int(genErr.Type))

	if genErr.Cause != nil {
		fmt.Fprintf(r.errOut, "  Error Chain:\n")
		err := genErr.Cause
		level := 1
		for err != nil {
			fmt.Fprintf(r.errOut, "    %d. %s\n", level, err.Error())
			err = errors.Unwrap(err)
			level++
		}
	}

	fmt.Fprintf(r.errOut, "\n")
}

// Debug prints debug information when verbose mode is enabled
func (r *DiagnosticReporter) Debug(format string, args ...interface{}) {
	if r.verbose {
		fmt.Fprintf(r.errOut, "[DEBUG] "+format+"\n", args...)
	}
}

// ReportDiffs prints the unified diffs produced in check mode
func (r *DiagnosticReporter) ReportDiffs(diffs []string) {
	for _, d := range diffs {
		fmt.Fprint(r.out, d)
		if !strings.HasSuffix(d, "\n") {
			fmt.Fprintln(r.out)
		}
	}
}

// GenerationSummary contains information about the generation process
type GenerationSummary struct {
	PackagesProcessed int
	Decorators        int
	TypeMaps          int
	Interceptors      int
	Glue              int
	DefaultSources    int
	Warnings          int
	CacheStats        string
	GeneratedFiles    []string
	UnchangedFiles    []string
	RemovedFiles      []string
	OverlayManifest   string
	RewrittenCalls    int
}

// Stats returns the summary in the form DiagnosticSystem.Summary prints
func (s GenerationSummary) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"Packages processed": s.PackagesProcessed,
		"Decorators":         s.Decorators,
		"Type maps":          s.TypeMaps,
		"Glue files":         s.Glue,
		"Default sources":    s.DefaultSources,
		"Files written":      len(s.GeneratedFiles),
		"Files unchanged":    len(s.UnchangedFiles),
		"Files removed":      len(s.RemovedFiles),
		"Warnings":           s.Warnings,
	}
	if s.Interceptors > 0 {
		stats["Interceptors"] = s.Interceptors
		stats["Calls rewritten"] = s.RewrittenCalls
	}
	if s.CacheStats != "" {
		stats["Cache"] = s.CacheStats
	}
	return stats
}

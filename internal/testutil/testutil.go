// Package testutil builds in-memory programs for generator tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toyz/tracegen/internal/resolver"
	"github.com/toyz/tracegen/internal/scanner"
	"github.com/toyz/tracegen/internal/snapshot"
)

// Module is the module path of test programs. It matches the runtime import
// path, so programs can carry TelemetrySource as their own package.
const Module = "github.com/toyz/tracegen"

// TelemetryFile is the module-relative file name of TelemetrySource
const TelemetryFile = "pkg/telemetry/telemetry.go"

// TelemetrySource mirrors the runtime API generated code depends on
const TelemetrySource = `package telemetry

import (
	"context"
	"fmt"
	"reflect"
)

type Span struct{}

func (s *Span) Fail(err error) {}
func (s *Span) End()           {}

type Source struct{}

func NewSource(name, version string) *Source { return &Source{} }

func (s *Source) Start(ctx context.Context, name string) (context.Context, *Span) {
	return ctx, &Span{}
}

func (s *Source) StartDetached(name string) *Span { return &Span{} }

func TypeName(t reflect.Type) string { return fmt.Sprint(t) }

func Recovered(v any) error { return fmt.Errorf("%v", v) }
`

// Load type-checks files under Module and fails the test on any type error
func Load(t testing.TB, files map[string]string) *snapshot.Snapshot {
	t.Helper()
	withRuntime := make(map[string]string, len(files)+1)
	withRuntime[TelemetryFile] = TelemetrySource
	for name, src := range files {
		withRuntime[name] = src
	}
	snap, err := snapshot.FromSources(snapshot.SourceConfig{Module: Module, Version: "v1.0.0", Files: withRuntime})
	require.NoError(t, err)
	require.Empty(t, snap.TypeErrors())
	return snap
}

// Resolve scans and resolves every package of snap, keyed by import path
func Resolve(t testing.TB, snap *snapshot.Snapshot) map[string]*resolver.PackageModel {
	t.Helper()
	known := make(map[string]bool, len(snap.Packages))
	for _, p := range snap.Packages {
		known[p.Path] = true
	}
	models := make(map[string]*resolver.PackageModel, len(snap.Packages))
	for _, p := range snap.Packages {
		var scanned []scanner.FileCandidates
		for _, f := range p.SourceFiles() {
			scanned = append(scanned, scanner.ScanFile(snap.Fset, f.Path, f.Syntax))
		}
		models[p.Path] = resolver.Resolve(snap, p, scanned, known)
	}
	return models
}

// Path returns the import path of a module-relative package directory
func Path(dir string) string {
	return Module + "/" + dir
}

// Root is the directory test programs are placed under
const Root = "/src/" + Module

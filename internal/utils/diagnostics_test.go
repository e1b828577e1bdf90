package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestDiagnostics(level DiagnosticLevel) (*DiagnosticSystem, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	d := NewDiagnosticSystemWithWriters(level, &out, &errOut)
	d.SetColors(false)
	d.SetShowTime(false)
	return d, &out, &errOut
}

func TestDiagnosticSystem_Levels(t *testing.T) {
	tests := []struct {
		name   string
		level  DiagnosticLevel
		stdout []string
		hidden []string
		stderr bool
	}{
		{"silent", DiagnosticSilent, nil, []string{"[WARN]", "[INFO]"}, false},
		{"error", DiagnosticError, nil, []string{"[WARN]", "[INFO]"}, true},
		{"info", DiagnosticInfo, []string{"[WARN] w", "[INFO] i", "[SUCCESS] s"}, []string{"[VERBOSE]", "[DEBUG]"}, true},
		{"verbose", DiagnosticVerbose, []string{"[VERBOSE] v"}, []string{"[DEBUG]"}, true},
		{"debug", DiagnosticDebug, []string{"[VERBOSE] v", "[DEBUG] dbg"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, out, errOut := newTestDiagnostics(tt.level)
			d.Error("e")
			d.Warn("w")
			d.Info("i")
			d.Success("s")
			d.Verbose("v")
			d.Debug("dbg")

			for _, want := range tt.stdout {
				assert.Contains(t, out.String(), want)
			}
			for _, absent := range tt.hidden {
				assert.NotContains(t, out.String(), absent)
			}
			if tt.stderr {
				assert.Equal(t, "[ERROR] e\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestDiagnosticSystem_Progress(t *testing.T) {
	d, out, _ := newTestDiagnostics(DiagnosticInfo)

	d.StartProgress("Loading %d packages", 3)
	assert.Empty(t, out.String(), "the step title is only announced in verbose mode")
	d.EndProgress(true, "")
	assert.Equal(t, "✓ Loading 3 packages\n", out.String())

	out.Reset()
	d.StartProgress("Writing")
	d.EndProgress(false, "Writing failed")
	assert.Equal(t, "✗ Writing failed\n", out.String())

	out.Reset()
	d.EndProgress(true, "")
	assert.Empty(t, out.String(), "no open step")

	d.Progress("done")
	assert.Equal(t, "✓ done\n", out.String())
}

func TestDiagnosticSystem_VerboseProgress(t *testing.T) {
	d, out, _ := newTestDiagnostics(DiagnosticVerbose)
	d.StartProgress("Scanning")
	d.EndProgress(true, "")
	assert.Contains(t, out.String(), "Scanning...\n")
	assert.Regexp(t, `✓ Scanning \(\d+m?s\)`, out.String())
}

func TestDiagnosticSystem_Layout(t *testing.T) {
	d, out, _ := newTestDiagnostics(DiagnosticInfo)

	d.Header("Tracing Decorator Generator")
	d.Subsection("Configuration")
	d.Indent()
	d.List("module: %s", "example.com/app")
	d.Unindent()
	d.Unindent()
	d.List("top")
	d.Summary("Done", map[string]interface{}{"b": 2, "a": 1})
	d.GenerationComplete()

	assert.Equal(t, "tracegen: Tracing Decorator Generator\n"+
		"\nConfiguration:\n"+
		"  - module: example.com/app\n"+
		"- top\n"+
		"\nDone\n   a: 1\n   b: 2\n\n"+
		"\ntracegen: Generation complete!\n", out.String())
}

func TestDiagnosticSystem_QuietHidesLayout(t *testing.T) {
	d := NewQuietDiagnostics()
	assert.Equal(t, DiagnosticError, d.Level())
	assert.Equal(t, DiagnosticVerbose, NewVerboseDiagnostics().Level())

	q, out, _ := newTestDiagnostics(DiagnosticError)
	q.Header("x")
	q.Section("x")
	q.Summary("x", map[string]interface{}{"k": 1})
	q.GenerationComplete()
	assert.Empty(t, out.String())
}

func TestShouldUseColors(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")
	assert.False(t, shouldUseColors())

	t.Setenv("NO_COLOR", "")
	assert.True(t, shouldUseColors())

	t.Setenv("FORCE_COLOR", "")
	t.Setenv("TERM", "dumb")
	assert.False(t, shouldUseColors())
	t.Setenv("TERM", "xterm-256color")
	assert.True(t, shouldUseColors())
}

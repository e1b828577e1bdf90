package synth

import (
	"bytes"
	"fmt"
	"text/template"
)

// Hooks are statement templates inserted around every traced call. Each is
// executed with {{.Ctx}} (the context parameter), {{.SpanName}} (a Go string
// expression) and {{.Err}} (the failing error).
type Hooks struct {
	Before         string `yaml:"before" msgpack:"before"`
	BeforeDetached string `yaml:"before_detached" msgpack:"before_detached"`
	OnError        string `yaml:"on_error" msgpack:"on_error"`
	After          string `yaml:"after" msgpack:"after"`
}

// DefaultHooks start a span on DefaultTracer, fail it on error and end it
func DefaultHooks() Hooks {
	return Hooks{
		Before:         "{{.Ctx}}, span := DefaultTracer.Start({{.Ctx}}, {{.SpanName}})",
		BeforeDetached: "span := DefaultTracer.StartDetached({{.SpanName}})",
		OnError:        "span.Fail({{.Err}})",
		After:          "span.End()",
	}
}

// WithDefaults fills every empty hook from DefaultHooks
func (h Hooks) WithDefaults() Hooks {
	d := DefaultHooks()
	if h.Before == "" {
		h.Before = d.Before
	}
	if h.BeforeDetached == "" {
		h.BeforeDetached = d.BeforeDetached
	}
	if h.OnError == "" {
		h.OnError = d.OnError
	}
	if h.After == "" {
		h.After = d.After
	}
	return h
}

// Validate parses every hook template
func (h Hooks) Validate() error {
	for name, text := range map[string]string{
		"before":          h.Before,
		"before_detached": h.BeforeDetached,
		"on_error":        h.OnError,
		"after":           h.After,
	} {
		if _, err := template.New(name).Parse(text); err != nil {
			return fmt.Errorf("invalid %s hook: %w", name, err)
		}
	}
	return nil
}

type hookData struct {
	Ctx      string
	SpanName string
	Err      string
}

type renderedHooks struct {
	before  string
	onError string
	after   string
}

// render expands the hooks for one call. ctx is empty when the call has no
// context parameter, which selects the detached before hook.
func (h Hooks) render(ctx, spanName string) (renderedHooks, error) {
	data := hookData{Ctx: ctx, SpanName: spanName, Err: "err"}
	before := h.Before
	if ctx == "" {
		before = h.BeforeDetached
	}

	var out renderedHooks
	var err error
	if out.before, err = expandHook("before", before, data); err != nil {
		return out, err
	}
	if out.onError, err = expandHook("on_error", h.OnError, data); err != nil {
		return out, err
	}
	if out.after, err = expandHook("after", h.After, data); err != nil {
		return out, err
	}
	return out, nil
}

func expandHook(name, text string, data hookData) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid %s hook: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to expand %s hook: %w", name, err)
	}
	return buf.String(), nil
}

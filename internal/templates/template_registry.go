package templates

// TemplateRegistry provides a centralized way to access all templates
type TemplateRegistry struct {
	templates map[string]string
}

// NewTemplateRegistry creates a new template registry with all templates
func NewTemplateRegistry() *TemplateRegistry {
	registry := &TemplateRegistry{
		templates: make(map[string]string),
	}

	registry.registerMethodTemplates()
	registry.registerDecoratorTemplates()
	registry.registerTypeMapTemplates()
	registry.registerGlueTemplates()

	return registry
}

// Get retrieves a template by name
func (tr *TemplateRegistry) Get(name string) (string, bool) {
	template, exists := tr.templates[name]
	return template, exists
}

// MustGet retrieves a template by name, panics if not found
func (tr *TemplateRegistry) MustGet(name string) string {
	template, exists := tr.templates[name]
	if !exists {
		panic("template not found: " + name)
	}
	return template
}

func (tr *TemplateRegistry) registerMethodTemplates() {
	// Instrumented or pass-through method. Receiver is empty for interceptors.
	tr.templates["method"] = `{{if .Doc}}// {{.Doc}}
{{end}}{{if .Directive}}{{.Directive}}
{{end}}func {{.Receiver}}{{.Name}}({{.Params}}){{.Results}} {
{{- if not .Instrumented}}
	{{if .Returns}}return {{end}}{{.Call}}
{{- else}}
	{{.Before}}
	defer func() {
		{{.After}}
	}()
	defer func() {
		if r := recover(); r != nil {
			err := {{.Recovered}}(r)
			{{.OnError}}
			panic(r)
		}
	}()
{{- if eq .Shape "GenericTask"}}
	{{.ResultVars}}, err := {{.Call}}
	if err != nil {
		{{.OnError}}
	}
	return {{.ResultVars}}, err
{{- else if eq .Shape "Task"}}
	err := {{.Call}}
	if err != nil {
		{{.OnError}}
	}
	return err
{{- else if eq .Shape "Value"}}
	return {{.Call}}
{{- else}}
	{{.Call}}
{{- end}}
{{- end}}
}
`
}

func (tr *TemplateRegistry) registerDecoratorTemplates() {
	tr.templates["decorator"] = `// {{.TypeName}} wraps a {{.InterfaceName}} and traces every call made through it.
type {{.TypeName}}{{.TypeParamsDecl}} struct {
	{{.BaseField}} {{.Interface}}
	{{.TypeField}} {{.ReflectType}}
}

// {{.Constructor}} returns a {{.TypeName}} delegating to base.
func {{.Constructor}}{{.TypeParamsDecl}}(base {{.Interface}}) *{{.TypeName}}{{.TypeArgs}} {
	return &{{.TypeName}}{{.TypeArgs}}{ {{- .BaseField}}: base, {{.TypeField}}: {{.ReflectTypeOf}}(base)}
}
{{if not .Generic}}
var _ {{.Interface}} = (*{{.TypeName}})(nil)
{{end}}`
}

func (tr *TemplateRegistry) registerTypeMapTemplates() {
	tr.templates["typemap"] = `// DecoratedTypes maps every traced interface to its generated decorator.
var DecoratedTypes = map[string]string{
{{- range .Entries}}
	{{printf "%q" .Interface}}: {{printf "%q" .Decorator}},
{{- end}}
}
`
}

func (tr *TemplateRegistry) registerGlueTemplates() {
	tr.templates["fx"] = `// DecoratorOptions returns one fx.Decorate option per generated decorator.
func DecoratorOptions() []{{.Lib}}.Option {
	return []{{.Lib}}.Option{
{{- range .Entries}}
		{{$.Lib}}.Decorate(func(base {{.Local}}) {{.Local}} { return {{.Constructor}}(base) }),
{{- end}}
	}
}

// DecoratorsModule substitutes every generated decorator for its interface.
var DecoratorsModule = {{.Lib}}.Options(DecoratorOptions()...)
`

	tr.templates["dig"] = `// DecorateContainer substitutes every generated decorator for its interface in c.
func DecorateContainer(c *{{.Lib}}.Container) error {
{{- range .Entries}}
	if err := c.Decorate(func(base {{.Local}}) {{.Local}} { return {{.Constructor}}(base) }); err != nil {
		return err
	}
{{- end}}
	return nil
}
`

	tr.templates["gin"] = `// UseGinTelemetry traces every request handled by r.
func UseGinTelemetry(r {{.Lib}}.IRoutes) {
	r.Use({{.Adapters}}.Gin(DefaultTracer))
}
`

	tr.templates["echo"] = `// UseEchoTelemetry traces every request handled by e.
func UseEchoTelemetry(e *{{.Lib}}.Echo) {
	e.Use({{.Adapters}}.Echo(DefaultTracer))
}
`

	tr.templates["fiber"] = `// UseFiberTelemetry traces every request handled by router.
func UseFiberTelemetry(router {{.Lib}}.Router) {
	router.Use({{.Adapters}}.Fiber(DefaultTracer))
}
`

	tr.templates["default-source"] = `// DefaultTracer is the tracing source generated code in this package reports to.
var DefaultTracer = {{.NewSource}}({{printf "%q" .Module}}, {{printf "%q" .Version}})
`
}

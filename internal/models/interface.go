package models

import "fmt"

// Location is a 1-based position inside a normalised source path
type Location struct {
	Path   string // normalised slash path
	Line   int    // line number (1-based)
	Column int    // column number (1-based, bytes)
}

// String returns path:line:column
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
}

// Import is a package referenced by a rendered type expression
type Import struct {
	Path string // import path
	Name string // local name used inside the rendered expression
}

// TypeRef is a type rendered as Go source relative to one destination package
type TypeRef struct {
	Expr    string   // e.g. "*store.Record" or "map[string]int"
	Imports []Import // packages Expr refers to
}

// Param represents a method parameter
type Param struct {
	Name string  // parameter name as it appears in generated code
	Type TypeRef // element type when the parameter is variadic
}

// TypeParam represents a type parameter of a generic interface
type TypeParam struct {
	Name       string
	Constraint TypeRef
}

// MethodDescriptor represents one method of a tracked interface or type
type MethodDescriptor struct {
	Name         string
	Params       []Param
	Results      []TypeRef
	Variadic     bool        // last parameter is variadic
	Shape        MethodShape // result classification
	ContextParam int         // index of the first context.Context parameter, -1 if none
	Skip         bool        // marked with //tracegen:skip
}

// InterfaceDescriptor represents an exported interface selected for decoration
type InterfaceDescriptor struct {
	ID          string             // canonical identifier: path.Name or path.Name[arity]
	Name        string             // declared identifier
	Package     string             // import path of the declaring package
	PackageName string             // package clause name
	Dir         string             // directory of the declaring package
	TypeParams  []TypeParam        // reproduced on the generated type
	Methods     []MethodDescriptor // methods declared directly on this interface
	Embedded    []MethodDescriptor // methods reached through embedded interfaces
	Location    Location           // position of the type name
	Skip        bool               // marked with //tracegen:skip
	Unsupported string             // reason decoration is impossible, empty when supported
}

// Generic reports whether the interface declares type parameters
func (d InterfaceDescriptor) Generic() bool {
	return len(d.TypeParams) > 0
}

// ImplementationDescriptor is one assertion that a type implements a tracked interface
type ImplementationDescriptor struct {
	Interface   string    // canonical identifier of the implemented interface
	Type        string    // display string of the implementing type
	TypeArgs    []TypeRef // concrete type arguments, relative to the interface's package
	DisplayArgs []string  // concrete type arguments, fully qualified
	Location    Location
}

// DecoratorDescriptor describes a generated decorator type
type DecoratorDescriptor struct {
	TypeName    string              // Decorated<Name> with separators stripped
	Hint        string              // stable unit hint, equal to TypeName
	Constructor string              // New<TypeName>
	BaseField   string              // field holding the wrapped instance
	TypeField   string              // field holding the wrapped instance's reflect.Type
	Interface   InterfaceDescriptor // the decorated interface
	Methods     []MethodDescriptor  // instrumented methods
	Delegated   []MethodDescriptor  // pass-through methods from embedded interfaces
}

// CallSiteDescriptor is one resolved call to a tracked member
type CallSiteDescriptor struct {
	Location     Location // position of the method name at the call site
	Caller       string   // enclosing function symbol
	Target       string   // canonical identifier of the called method
	TargetOrigin string   // canonical identifier of its generic origin
	Container    string   // declared name of the type owning the method
	Method       string
	Package      string // import path of the calling package
	PackageName  string
	Dir          string
	Receiver     TypeRef // static receiver type, pointer when AddrOf is set
	AddrOf       bool    // the call site must pass the receiver by address
	Params       []Param
	Results      []TypeRef
	Variadic     bool
	Shape        MethodShape
	ContextParam int
	Unsupported  string // reason the call cannot be intercepted, empty when supported
}

// TypeMapEntry joins an interface to its decorator for registration glue
type TypeMapEntry struct {
	Package     string  // import path of the interface's package
	Interface   string  // display string, e.g. example.com/app.Repo[int]
	Decorator   string  // display string, e.g. example.com/app.DecoratedRepo[int]
	Local       TypeRef // interface expression inside its own package
	Constructor string  // constructor expression inside its own package
	Resolved    bool    // false when the arguments cannot be named in glue
}

// Diagnostic codes reported by the engine
const (
	DiagUnclassifiedShape   = "TG001"
	DiagNameCollision       = "TG002"
	DiagUnsupportedType     = "TG003"
	DiagUnnameableType      = "TG004"
	DiagMultiValueArgument  = "TG005"
	DiagGenericCaller       = "TG006"
	DiagDefaultSourceExists = "TG007"
	DiagGlueSkipped         = "TG008"
	DiagFileNameCollision   = "TG009"
	DiagSkipDirective       = "TG010"
)

// Diagnostic is a non-fatal finding reported alongside generated output
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Location Location
}

// String formats the diagnostic the way compilers do
func (d Diagnostic) String() string {
	if d.Location.Path == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", d.Location, d.Severity, d.Code, d.Message)
}

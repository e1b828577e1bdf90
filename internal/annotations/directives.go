package annotations

import (
	"fmt"
	"go/ast"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/toyz/tracegen/internal/models"
)

// Prefix opens every tracegen directive comment
const Prefix = "//tracegen:"

const (
	// SkipDirective opts an interface or method out of instrumentation
	SkipDirective = "skip"
	// InterceptsDirective binds an interceptor to one call site
	InterceptsDirective = "intercepts"
)

// Directive is the root of a //tracegen: comment
type Directive struct {
	Comment string `parser:"@Comment"`
	Tool    string `parser:"@Tool"`
	Colon   string `parser:"@Colon"`
	Name    string `parser:"@Ident"`
	Args    []*Arg `parser:"@@*"`
}

// Arg is one positional directive argument
type Arg struct {
	String *string `parser:"  @String"`
	Int    *int    `parser:"| @Int"`
	Ident  *string `parser:"| @Ident"`
}

var directiveParser = participle.MustBuild[Directive](
	participle.Lexer(lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `//`},
		{Name: "Tool", Pattern: `tracegen\b`},
		{Name: "Colon", Pattern: `:`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Int", Pattern: `[0-9]+`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.-]*`},
		{Name: "Whitespace", Pattern: `[ \t]+`},
	})),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// IsDirective reports whether the raw comment text is a tracegen directive
func IsDirective(comment string) bool {
	return strings.HasPrefix(comment, Prefix)
}

// Parse parses a single raw comment line such as `//tracegen:skip`
func Parse(comment string) (*Directive, error) {
	if !IsDirective(comment) {
		return nil, fmt.Errorf("not a tracegen directive: %q", comment)
	}
	d, err := directiveParser.ParseString("", strings.TrimSpace(comment))
	if err != nil {
		return nil, fmt.Errorf("invalid directive %q: %w", comment, err)
	}
	return d, nil
}

// AddrArg marks an intercepted call whose receiver must be passed by address
const AddrArg = "addr"

// Intercept is the call site an interceptor is bound to
type Intercept struct {
	Location models.Location
	AddrOf   bool
}

// FormatIntercepts renders the location tag attached to an interceptor
func FormatIntercepts(loc models.Location, addrOf bool) string {
	tag := fmt.Sprintf("%s%s %s %d %d", Prefix, InterceptsDirective, strconv.Quote(loc.Path), loc.Line, loc.Column)
	if addrOf {
		tag += " " + AddrArg
	}
	return tag
}

// ParseIntercepts extracts the call site from an intercepts directive
func ParseIntercepts(comment string) (Intercept, error) {
	d, err := Parse(comment)
	if err != nil {
		return Intercept{}, err
	}
	if d.Name != InterceptsDirective {
		return Intercept{}, fmt.Errorf("expected %s directive, got %s", InterceptsDirective, d.Name)
	}
	if len(d.Args) < 3 || len(d.Args) > 4 || d.Args[0].String == nil || d.Args[1].Int == nil || d.Args[2].Int == nil {
		return Intercept{}, fmt.Errorf("intercepts directive wants \"path\" line column [addr]: %q", comment)
	}
	in := Intercept{Location: models.Location{Path: *d.Args[0].String, Line: *d.Args[1].Int, Column: *d.Args[2].Int}}
	if len(d.Args) == 4 {
		if d.Args[3].Ident == nil || *d.Args[3].Ident != AddrArg {
			return Intercept{}, fmt.Errorf("unknown intercepts flag in %q", comment)
		}
		in.AddrOf = true
	}
	if in.Location.Line < 1 || in.Location.Column < 1 {
		return Intercept{}, fmt.Errorf("intercepts position must be 1-based: %q", comment)
	}
	return in, nil
}

// HasSkip reports whether any of the comment groups carries //tracegen:skip
func HasSkip(groups ...*ast.CommentGroup) bool {
	for _, group := range groups {
		if group == nil {
			continue
		}
		for _, c := range group.List {
			if !IsDirective(c.Text) {
				continue
			}
			if d, err := Parse(c.Text); err == nil && d.Name == SkipDirective {
				return true
			}
		}
	}
	return false
}

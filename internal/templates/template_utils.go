package templates

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/toyz/tracegen/internal/models"
)

// TemplateUtils provides common utilities for template generation
type TemplateUtils struct{}

// NewTemplateUtils creates a new template utilities instance
func NewTemplateUtils() *TemplateUtils {
	return &TemplateUtils{}
}

// Capitalize upper-cases the first rune of s
func (tu *TemplateUtils) Capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// StripSeparators removes characters that cannot appear in a generated identifier
func (tu *TemplateUtils) StripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '.' || r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParamList renders a parameter list. The last parameter is written with ...
// when variadic is set.
func (tu *TemplateUtils) ParamList(params []models.Param, variadic bool) string {
	parts := make([]string, len(params))
	for i, p := range params {
		typ := p.Type.Expr
		if variadic && i == len(params)-1 {
			typ = "..." + typ
		}
		parts[i] = p.Name + " " + typ
	}
	return strings.Join(parts, ", ")
}

// ArgList renders the arguments forwarding params, spreading a variadic tail
func (tu *TemplateUtils) ArgList(params []models.Param, variadic bool) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name
		if variadic && i == len(params)-1 {
			parts[i] += "..."
		}
	}
	return strings.Join(parts, ", ")
}

// ResultList renders a result list with its leading space
func (tu *TemplateUtils) ResultList(results []models.TypeRef) string {
	switch len(results) {
	case 0:
		return ""
	case 1:
		return " " + results[0].Expr
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Expr
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// ResultVars names the value results preceding the trailing error: r0, r1, ...
func (tu *TemplateUtils) ResultVars(results []models.TypeRef) string {
	if len(results) < 2 {
		return ""
	}
	parts := make([]string, len(results)-1)
	for i := range parts {
		parts[i] = "r" + strconv.Itoa(i)
	}
	return strings.Join(parts, ", ")
}

// TypeParamsDecl renders a type parameter declaration, "[K comparable, V any]"
func (tu *TemplateUtils) TypeParamsDecl(params []models.TypeParam) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + p.Constraint.Expr
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TypeArgs renders the type parameters as arguments, "[K, V]"
func (tu *TemplateUtils) TypeArgs(params []models.TypeParam) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// DefaultTemplateUtils provides a global instance for convenience
var DefaultTemplateUtils = NewTemplateUtils()

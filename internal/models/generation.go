package models

import (
	"strings"
	"unicode"
)

// GeneratedHeader marks every file produced by the generator
const GeneratedHeader = "// Code generated by tracegen. DO NOT EDIT."

// GeneratedFilePrefix is shared by every generated file name
const GeneratedFilePrefix = "autogen_"

// Unit is one generated source file
type Unit struct {
	Kind        UnitKind
	Package     string // import path of the receiving package
	PackageName string
	Dir         string // directory of the receiving package
	Hint        string // stable name derived from the originating entity
	Content     []byte // formatted Go source
}

// FileName returns the file name the unit is written under
func (u Unit) FileName() string {
	return GeneratedFilePrefix + snakeCase(u.Hint) + ".go"
}

// snakeCase lowers a hint so that names stay distinct on case-insensitive
// file systems: DecoratedStatsProvider becomes decorated_stats_provider.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return strings.ReplaceAll(b.String(), "__", "_")
}

package annotations

import (
	"go/ast"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toyz/tracegen/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantArgs int
		wantErr  bool
	}{
		{name: "skip", input: "//tracegen:skip", wantName: "skip"},
		{name: "skip with trailing space", input: "//tracegen:skip  ", wantName: "skip"},
		{name: "intercepts", input: `//tracegen:intercepts "/src/app/main.go" 12 5`, wantName: "intercepts", wantArgs: 3},
		{name: "not a directive", input: "// tracegen:skip", wantErr: true},
		{name: "other tool", input: "//go:generate tracegen", wantErr: true},
		{name: "missing name", input: "//tracegen:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, d.Name)
			assert.Len(t, d.Args, tt.wantArgs)
		})
	}
}

func TestInterceptsRoundTrip(t *testing.T) {
	locations := []models.Location{
		{Path: "/src/app/handlers/stats.go", Line: 42, Column: 17},
		{Path: "C:/work/app/main.go", Line: 1, Column: 1},
		{Path: `/tmp/odd "quoted" dir/file.go`, Line: 7, Column: 3},
	}

	for _, loc := range locations {
		t.Run(loc.Path, func(t *testing.T) {
			tag := FormatIntercepts(loc, false)
			assert.True(t, IsDirective(tag))

			parsed, err := ParseIntercepts(tag)
			require.NoError(t, err)
			assert.Equal(t, loc, parsed.Location)
			assert.False(t, parsed.AddrOf)
		})
	}
}

func TestInterceptsAddrOf(t *testing.T) {
	loc := models.Location{Path: "/src/app/main.go", Line: 3, Column: 9}
	tag := FormatIntercepts(loc, true)
	assert.Equal(t, `//tracegen:intercepts "/src/app/main.go" 3 9 addr`, tag)

	parsed, err := ParseIntercepts(tag)
	require.NoError(t, err)
	assert.True(t, parsed.AddrOf)
	assert.Equal(t, loc, parsed.Location)
}

func TestParseIntercepts_Invalid(t *testing.T) {
	inputs := []string{
		"//tracegen:skip",
		`//tracegen:intercepts "/a.go" 12`,
		`//tracegen:intercepts /a.go 12 5`,
		`//tracegen:intercepts "/a.go" 0 5`,
		`//tracegen:intercepts "/a.go" 1 5 copy`,
		`//tracegen:intercepts "/a.go" 1 5 addr addr`,
	}
	for _, input := range inputs {
		_, err := ParseIntercepts(input)
		assert.Error(t, err, input)
	}
}

func TestHasSkip(t *testing.T) {
	doc := &ast.CommentGroup{List: []*ast.Comment{
		{Text: "// Provider fetches statistics."},
		{Text: "//tracegen:skip"},
	}}
	plain := &ast.CommentGroup{List: []*ast.Comment{{Text: "// nothing to see"}}}

	assert.True(t, HasSkip(doc))
	assert.True(t, HasSkip(nil, plain, doc))
	assert.False(t, HasSkip(plain))
	assert.False(t, HasSkip(nil))
}

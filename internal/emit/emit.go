// Package emit writes the units of a generation pass: package units into
// their package directories and interceptors into the overlay directory.
package emit

import (
	"fmt"
	"path"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/toyz/tracegen/internal/models"
)

// OutputSet is the ordered, collision-free output of one pass
type OutputSet struct {
	Units        []*models.Unit // package units, sorted by directory and file name
	Interceptors []*models.Unit // overlay-only units, same order
}

// NewOutputSet orders units and drops every unit whose file name is already
// taken in its directory, reporting each dropped unit.
func NewOutputSet(units []*models.Unit) (*OutputSet, []models.Diagnostic) {
	sorted := append([]*models.Unit(nil), units...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Dir != sorted[j].Dir {
			return sorted[i].Dir < sorted[j].Dir
		}
		return sorted[i].FileName() < sorted[j].FileName()
	})

	set := &OutputSet{}
	var diags []models.Diagnostic
	seen := make(map[string]*models.Unit, len(sorted))
	for _, u := range sorted {
		target := Path(u)
		if first, ok := seen[target]; ok {
			diags = append(diags, models.Diagnostic{
				Severity: models.SeverityError,
				Code:     models.DiagFileNameCollision,
				Message:  fmt.Sprintf("%s %s and %s %s both map to %s", first.Kind, first.Hint, u.Kind, u.Hint, u.FileName()),
				Location: models.Location{Path: target},
			})
			continue
		}
		seen[target] = u
		if u.Kind == models.UnitInterceptor {
			set.Interceptors = append(set.Interceptors, u)
		} else {
			set.Units = append(set.Units, u)
		}
	}
	return set, diags
}

// Path returns the normalised path a unit is written to
func Path(u *models.Unit) string {
	return path.Join(u.Dir, u.FileName())
}

// Dirs returns the directories receiving package units, sorted
func (s *OutputSet) Dirs() []string {
	var dirs []string
	for _, u := range s.Units {
		if len(dirs) == 0 || dirs[len(dirs)-1] != u.Dir {
			dirs = append(dirs, u.Dir)
		}
	}
	return dirs
}

// Diff is the pending change of one file in check mode
type Diff struct {
	Path string
	Text string // unified diff
}

// UnifiedDiff renders the change from old to new content of one file
func UnifiedDiff(name string, old, new []byte) string {
	text, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(old)),
		B:        difflib.SplitLines(string(new)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	return text
}

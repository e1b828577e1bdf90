// Package typemap joins tracked interfaces to the decorators generated for
// them, one entry per distinct instantiation.
package typemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-analyze/bulk"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/synth"
	"github.com/toyz/tracegen/internal/templates"
)

// Hint names the type-map unit of every package
const Hint = synth.TypeMapName

// Entries builds the map entries of decorated interfaces. impls may span the
// whole snapshot; only assertions of the given interfaces are considered.
func Entries(decorated []models.InterfaceDescriptor, impls []models.ImplementationDescriptor) []models.TypeMapEntry {
	byInterface := bulk.SliceToGroupsBy(func(impl models.ImplementationDescriptor) string {
		return impl.Interface
	}, impls)

	var entries []models.TypeMapEntry
	for _, iface := range decorated {
		if !iface.Generic() {
			entries = append(entries, entry(iface, nil, nil))
			continue
		}

		seen := make(map[string]bool)
		for _, impl := range byInterface[iface.ID] {
			key := strings.Join(impl.DisplayArgs, ", ")
			if seen[key] || len(impl.DisplayArgs) != len(iface.TypeParams) {
				continue
			}
			seen[key] = true
			entries = append(entries, entry(iface, impl.DisplayArgs, impl.TypeArgs))
		}
		if len(seen) == 0 {
			// no instantiation observed: map the type-parameter form
			names := make([]string, len(iface.TypeParams))
			for i, tp := range iface.TypeParams {
				names[i] = tp.Name
			}
			e := entry(iface, names, nil)
			e.Resolved = false
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Interface < entries[j].Interface
	})
	return entries
}

func entry(iface models.InterfaceDescriptor, display []string, args []models.TypeRef) models.TypeMapEntry {
	e := models.TypeMapEntry{
		Package:     iface.Package,
		Interface:   iface.Package + "." + iface.Name,
		Decorator:   iface.Package + "." + synth.TypeName(iface.Name),
		Local:       models.TypeRef{Expr: iface.Name},
		Constructor: synth.Constructor(iface.Name),
		Resolved:    true,
	}
	if len(display) == 0 {
		return e
	}

	suffix := "[" + strings.Join(display, ", ") + "]"
	e.Interface += suffix
	e.Decorator += suffix

	if len(args) != len(display) {
		e.Resolved = false
		return e
	}
	exprs := make([]string, len(args))
	for i, arg := range args {
		if arg.Expr == "" {
			e.Resolved = false
			return e
		}
		exprs[i] = arg.Expr
		e.Local.Imports = append(e.Local.Imports, arg.Imports...)
	}
	local := "[" + strings.Join(exprs, ", ") + "]"
	e.Local.Expr += local
	e.Constructor += local
	return e
}

// Generate renders the DecoratedTypes unit of one package. It returns nil when
// there are no entries.
func Generate(pkgPath, pkgName, dir string, declared []string, entries []models.TypeMapEntry) (*models.Unit, []models.Diagnostic, error) {
	entries = bulk.SliceFilter(func(e models.TypeMapEntry) bool {
		return e.Package == pkgPath
	}, entries)
	if len(entries) == 0 {
		return nil, nil, nil
	}
	if i := sort.SearchStrings(declared, Hint); i < len(declared) && declared[i] == Hint {
		return nil, []models.Diagnostic{{
			Severity: models.SeverityWarning,
			Code:     models.DiagNameCollision,
			Message:  fmt.Sprintf("type map for %s not generated: %s is already declared", pkgPath, Hint),
			Location: models.Location{Path: dir},
		}}, nil
	}

	body, err := templates.GenerateTypeMap(templates.TypeMapData{Entries: entries})
	if err != nil {
		return nil, nil, err
	}
	content, err := templates.RenderFile(pkgName, templates.NewImportManager(declared...), body)
	if err != nil {
		return nil, nil, err
	}
	return &models.Unit{
		Kind:        models.UnitTypeMap,
		Package:     pkgPath,
		PackageName: pkgName,
		Dir:         dir,
		Hint:        Hint,
		Content:     content,
	}, nil, nil
}

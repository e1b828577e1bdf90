package glue

import (
	"fmt"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/templates"
)

// DefaultSourceHint names the default tracer unit
const DefaultSourceHint = "DefaultTracer"

// DefaultSourceInput describes the package that needs a default tracer
type DefaultSourceInput struct {
	Path             string
	Name             string
	Dir              string
	Module           string
	Version          string
	HasDefaultSource bool // DefaultTracer is already declared by hand
}

// DefaultSource emits the DefaultTracer declaration, unless the package
// already declares one outside generated files.
func DefaultSource(in DefaultSourceInput) (*models.Unit, []models.Diagnostic, error) {
	if in.HasDefaultSource {
		return nil, []models.Diagnostic{{
			Severity: models.SeverityInfo,
			Code:     models.DiagDefaultSourceExists,
			Message:  fmt.Sprintf("%s declares DefaultTracer; the default source is not generated", in.Path),
			Location: models.Location{Path: in.Dir},
		}}, nil
	}

	body, err := templates.GenerateDefaultSource(templates.DefaultSourceData{
		NewSource: templates.Qualified(templates.TelemetryPackage, "NewSource"),
		Module:    in.Module,
		Version:   in.Version,
	})
	if err != nil {
		return nil, nil, err
	}
	content, err := templates.RenderFile(in.Name, templates.NewImportManager(), body)
	if err != nil {
		return nil, nil, err
	}
	return &models.Unit{
		Kind:        models.UnitDefaultSource,
		Package:     in.Path,
		PackageName: in.Name,
		Dir:         in.Dir,
		Hint:        DefaultSourceHint,
		Content:     content,
	}, nil, nil
}

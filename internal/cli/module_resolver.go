package cli

import (
	"fmt"
	"os"

	"github.com/toyz/tracegen/internal/snapshot"
	"github.com/toyz/tracegen/internal/utils"
)

// ModuleResolver handles resolving Go module information
type ModuleResolver struct{}

// NewModuleResolver creates a new module resolver
func NewModuleResolver() *ModuleResolver {
	return &ModuleResolver{}
}

// ResolveModuleName resolves the module name from the current directory.
// If customModule is provided, it uses that; otherwise reads from go.mod
func (r *ModuleResolver) ResolveModuleName(customModule string) (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return r.ResolveModuleNameFrom(currentDir, customModule)
}

// ResolveModuleNameFrom resolves the module name of the module holding dir
func (r *ModuleResolver) ResolveModuleNameFrom(dir, customModule string) (string, error) {
	if customModule != "" {
		return customModule, nil
	}
	mod, err := r.ReadModule(dir)
	if err != nil {
		return "", fmt.Errorf("failed to determine module name: %w (consider using --module flag)", err)
	}
	return mod.Path, nil
}

// ReadModule parses the go.mod governing dir
func (r *ModuleResolver) ReadModule(dir string) (*snapshot.ModuleFile, error) {
	goModPath, err := utils.FindGoModFile(dir)
	if err != nil {
		return nil, err
	}
	return snapshot.ReadModuleFile(goModPath)
}

package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/snapshot"
)

// Cleaner removes generated files
type Cleaner struct{}

// NewCleaner creates a new cleaner
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// CleanGeneratedFiles removes every generated file from the given
// directories. A directory ending in /... is cleaned recursively.
func (c *Cleaner) CleanGeneratedFiles(directories []string) ([]string, error) {
	var removed []string
	for _, dir := range directories {
		if err := c.cleanDirectory(dir, &removed); err != nil {
			return removed, fmt.Errorf("failed to clean directory %s: %w", dir, err)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// cleanDirectory handles Go-style patterns like ./...
func (c *Cleaner) cleanDirectory(dir string, removed *[]string) error {
	if strings.HasSuffix(dir, "/...") {
		baseDir := strings.TrimSuffix(dir, "/...")
		if baseDir == "" {
			baseDir = "."
		}
		return c.cleanRecursively(baseDir, removed)
	}
	return c.cleanSingleDirectory(dir, removed)
}

func (c *Cleaner) cleanRecursively(baseDir string, removed *[]string) error {
	return filepath.WalkDir(baseDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			// skip directories that can't be accessed
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); p != baseDir && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			return filepath.SkipDir
		}
		return c.cleanSingleDirectory(p, removed)
	})
}

func (c *Cleaner) cleanSingleDirectory(dir string, removed *[]string) error {
	files, err := GeneratedFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove file %s: %w", f, err)
		}
		*removed = append(*removed, f)
	}
	return nil
}

// GeneratedFiles lists the autogen_*.go files of dir that carry the
// generator's header. A missing directory has none.
func GeneratedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(snapshot.NativePath(dir))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, models.GeneratedFilePrefix) || !strings.HasSuffix(name, ".go") {
			continue
		}
		p := filepath.Join(snapshot.NativePath(dir), name)
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		if snapshot.IsGenerated(content) {
			files = append(files, p)
		}
	}
	return files, nil
}

package emit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	tgerrors "github.com/toyz/tracegen/internal/errors"
	"github.com/toyz/tracegen/internal/intercept"
	"github.com/toyz/tracegen/internal/models"
	"github.com/toyz/tracegen/internal/snapshot"
)

// Writer places an OutputSet on disk
type Writer struct {
	// Dirs are package directories whose stale generated files are removed,
	// in addition to the directories receiving units
	Dirs []string
	// OverlayDir receives interceptors, rewritten callers and the overlay
	// manifest. Interceptors are not emitted when it is empty.
	OverlayDir string
	// ReadFile loads caller sources for the overlay, from disk when nil
	ReadFile func(normalized string) ([]byte, error)
	// Check compares instead of writing
	Check bool
}

// Report summarises what Emit did, or would do in check mode
type Report struct {
	Written   []string
	Unchanged []string
	Removed   []string
	Diffs     []Diff // check mode only
	Overlay   string // manifest path, empty when no overlay was written
	Rewritten int    // call expressions redirected through the overlay
	Unmatched []models.Location
}

// Clean reports whether the tree already matches the output set
func (r *Report) Clean() bool {
	return len(r.Written) == 0 && len(r.Removed) == 0 && len(r.Diffs) == 0
}

// Emit writes set. Files whose content is unchanged are not touched.
func (w *Writer) Emit(ctx context.Context, set *OutputSet) (*Report, error) {
	rep := &Report{}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for _, u := range set.Units {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			target := Path(u)
			existing, err := os.ReadFile(snapshot.NativePath(target))
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to read %s: %w", target, err)
			}
			unchanged := err == nil && bytes.Equal(existing, u.Content)
			if !unchanged && !w.Check {
				if err := writeFile(target, u.Content); err != nil {
					return err
				}
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case unchanged:
				rep.Unchanged = append(rep.Unchanged, target)
			case w.Check:
				rep.Diffs = append(rep.Diffs, Diff{Path: target, Text: UnifiedDiff(u.FileName(), existing, u.Content)})
			default:
				rep.Written = append(rep.Written, target)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := w.removeStale(set, rep); err != nil {
		return nil, err
	}
	if err := w.emitOverlay(set, rep); err != nil {
		return nil, err
	}

	sort.Strings(rep.Written)
	sort.Strings(rep.Unchanged)
	sort.Strings(rep.Removed)
	sort.Slice(rep.Diffs, func(i, j int) bool { return rep.Diffs[i].Path < rep.Diffs[j].Path })
	return rep, nil
}

// removeStale deletes generated files no unit of set maps to
func (w *Writer) removeStale(set *OutputSet, rep *Report) error {
	keep := make(map[string]bool, len(set.Units))
	for _, u := range set.Units {
		keep[Path(u)] = true
	}

	dirs := make(map[string]bool)
	for _, d := range append(set.Dirs(), w.Dirs...) {
		dirs[snapshot.NormalizePath(d)] = true
	}
	sorted := make([]string, 0, len(dirs))
	for d := range dirs {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	for _, dir := range sorted {
		files, err := GeneratedFiles(dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			normalized := snapshot.NormalizePath(f)
			if keep[normalized] {
				continue
			}
			if w.Check {
				old, err := os.ReadFile(f)
				if err != nil {
					return err
				}
				rep.Diffs = append(rep.Diffs, Diff{Path: normalized, Text: UnifiedDiff(filepath.Base(f), old, nil)})
				continue
			}
			if err := os.Remove(f); err != nil {
				return fmt.Errorf("failed to remove stale file %s: %w", f, err)
			}
			rep.Removed = append(rep.Removed, normalized)
		}
	}
	return nil
}

// emitOverlay writes interceptors, rewritten callers and the manifest. The
// overlay directory is owned by the generator; files it no longer needs are
// removed.
func (w *Writer) emitOverlay(set *OutputSet, rep *Report) error {
	if w.Check || w.OverlayDir == "" || len(set.Interceptors) == 0 {
		return nil
	}
	host := &intercept.Host{OverlayDir: w.OverlayDir, ReadFile: w.ReadFile}
	res, err := host.Apply(set.Interceptors)
	if err != nil {
		return err
	}

	dir := snapshot.NormalizePath(w.OverlayDir)
	manifest, err := res.Overlay.Marshal()
	if err != nil {
		return tgerrors.WrapOverlayError("encode", w.OverlayDir, err)
	}
	files := make(map[string][]byte, len(res.Files)+1)
	for p, content := range res.Files {
		files[p] = content
	}
	manifestPath := path.Join(dir, intercept.OverlayFile)
	files[manifestPath] = manifest

	for p, content := range files {
		existing, err := os.ReadFile(snapshot.NativePath(p))
		if err == nil && bytes.Equal(existing, content) {
			continue
		}
		if err := writeFile(p, content); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(snapshot.NativePath(dir))
	if err != nil {
		return tgerrors.WrapOverlayError("list", w.OverlayDir, err)
	}
	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() || files[p] != nil {
			continue
		}
		if err := os.Remove(snapshot.NativePath(p)); err != nil {
			return fmt.Errorf("failed to remove stale overlay file %s: %w", p, err)
		}
	}

	rep.Overlay = manifestPath
	rep.Rewritten = res.Rewritten
	rep.Unmatched = res.Unmatched
	return nil
}

func writeFile(normalized string, content []byte) error {
	p := snapshot.NativePath(normalized)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return tgerrors.WrapFileSystemError("create directory for", normalized, err)
	}
	if err := os.WriteFile(p, content, 0644); err != nil {
		return tgerrors.WrapFileSystemError("write", normalized, err)
	}
	return nil
}

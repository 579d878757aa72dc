package storage

import (
	"os"
	"path/filepath"
	"strings"

	"pository/pkg/log"
	"pository/pkg/models"
)

// DeletePackage removes the stored artifact at loc and its index entry.
// Deletion is atomic from a reader's perspective: the index entry is
// removed (and saved) before the underlying files are unlinked, so a
// concurrent listPackages call never observes a location whose files are
// already gone. Any parent directory left empty by the removal (version,
// name, architecture, component, distribution) is pruned in turn, stopping
// at the repo root.
func (e *Engine) DeletePackage(loc models.PackageLocation) error {
	lock := e.locationMutex(locationKey(loc))
	lock.Lock()
	defer lock.Unlock()

	if err := e.removeFromIndex(loc); err != nil {
		return err
	}

	dir := e.locationDir(loc)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	e.pruneEmptyParents(dir)

	log.Info().Str("repo", loc.Repo).Str("name", loc.Name).Str("version", loc.Version).
		Str("architecture", loc.Architecture).Msg("Package deleted")
	return nil
}

// pruneEmptyParents walks upward from the just-removed directory, removing
// each ancestor that has become empty, until it reaches a non-empty
// ancestor or e.RootDir itself. Best-effort: any error just stops the walk,
// leaving the remaining (non-empty-by-this-check) directories in place.
func (e *Engine) pruneEmptyParents(dir string) {
	root := filepath.Clean(e.RootDir)
	for parent := filepath.Dir(filepath.Clean(dir)); strings.HasPrefix(parent, root) && parent != root; parent = filepath.Dir(parent) {
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(parent); err != nil {
			return
		}
	}
}

func (e *Engine) removeFromIndex(loc models.PackageLocation) error {
	repoLock := e.repoMutex(loc.Repo)
	repoLock.Lock()
	defer repoLock.Unlock()

	idx, err := e.loadIndex(loc.Repo)
	if err != nil {
		return err
	}

	key := locationKey(loc)
	found := false
	kept := make([]models.PackageMetadata, 0, len(idx.Packages))
	for _, pkg := range idx.Packages {
		if locationKey(pkg.Location()) == key {
			found = true
			continue
		}
		kept = append(kept, pkg)
	}
	if !found {
		return PackageNotFoundError{Location: loc}
	}
	idx.Packages = kept
	return e.saveIndex(loc.Repo, idx)
}

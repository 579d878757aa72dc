package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"pository/pkg/log"
	"pository/pkg/models"
)

func (e *Engine) repoDir(repo string) string {
	return filepath.Join(e.RootDir, repo)
}

func (e *Engine) indexPath(repo string) string {
	return filepath.Join(e.repoDir(repo), "index.json")
}

// loadIndex returns the in-memory package index for repo, loading it from
// disk (and self-healing it against the actual data tree) on first access.
// Callers must hold repoMutex(repo).
func (e *Engine) loadIndex(repo string) (*models.PackageIndex, error) {
	e.cacheGuard.RLock()
	cached, ok := e.cache[repo]
	e.cacheGuard.RUnlock()
	if ok {
		return cached, nil
	}

	idx := &models.PackageIndex{}
	data, err := os.ReadFile(e.indexPath(repo))
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, idx); jerr != nil {
			log.Error().Err(jerr).Str("repo", repo).Msg("Corrupt index.json, rebuilding from data tree")
			idx = &models.PackageIndex{}
		}
	case os.IsNotExist(err):
		// No index yet; self-heal below may still find packages from a
		// prior run that crashed before the index was written.
	default:
		return nil, err
	}

	healed, dirty, herr := e.selfHeal(repo, idx)
	if herr != nil {
		return nil, herr
	}

	if dirty {
		if err := e.saveIndex(repo, healed); err != nil {
			return nil, err
		}
		return healed, nil
	}

	e.cacheGuard.Lock()
	e.cache[repo] = healed
	e.cacheGuard.Unlock()

	return healed, nil
}

// saveIndex persists idx for repo with a write-then-rename, so a reader
// never observes a partially written index.json. Callers must hold
// repoMutex(repo).
func (e *Engine) saveIndex(repo string, idx *models.PackageIndex) error {
	if err := os.MkdirAll(e.repoDir(repo), dirPerm); err != nil {
		return err
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(e.repoDir(repo), "index-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, e.indexPath(repo)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	e.cacheGuard.Lock()
	e.cache[repo] = idx
	e.cacheGuard.Unlock()
	return nil
}

// selfHeal walks the on-disk data tree for repo and backfills any package
// whose metadata.json exists but is missing from idx (tolerating a previous
// process crashing after a metadata write but before the index was
// re-saved), then sweeps every entry in idx for a missing description and
// re-extracts it from the artifact on disk via enrichFromDisk. dirty reports
// whether idx was modified and must be persisted by the caller.
func (e *Engine) selfHeal(repo string, idx *models.PackageIndex) (healed *models.PackageIndex, dirty bool, err error) {
	known := make(map[string]bool, len(idx.Packages))
	for _, pkg := range idx.Packages {
		known[locationKey(pkg.Location())] = true
	}

	root := e.repoDir(repo)
	if _, serr := os.Stat(root); os.IsNotExist(serr) {
		return idx, false, nil
	}

	werr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "metadata.json" {
			return nil
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			log.Warn().Err(rerr).Str("path", path).Msg("Skipping unreadable metadata during self-heal")
			return nil
		}
		var meta models.PackageMetadata
		if uerr := json.Unmarshal(data, &meta); uerr != nil {
			log.Warn().Err(uerr).Str("path", path).Msg("Skipping corrupt metadata during self-heal")
			return nil
		}
		key := locationKey(meta.Location())
		if known[key] {
			return nil
		}
		// Only trust metadata whose sibling package.deb actually exists;
		// otherwise this is a half-written upload left by a crash.
		dir := filepath.Dir(path)
		debPath := filepath.Join(dir, "package.deb")
		if _, serr := os.Stat(debPath); serr != nil {
			return nil
		}
		if meta.Description == "" && e.enrichFromDisk(dir, &meta) {
			if werr := e.writeMetadataFile(dir, meta); werr != nil {
				log.Warn().Err(werr).Str("path", path).Msg("Failed to persist self-heal enrichment")
			}
		}
		known[key] = true
		idx.Packages = append(idx.Packages, meta)
		dirty = true
		log.Info().Str("repo", repo).Str("name", meta.Name).Str("version", meta.Version).
			Msg("Self-heal backfilled package missing from index")
		return nil
	})
	if werr != nil {
		return nil, false, werr
	}

	for i := range idx.Packages {
		if idx.Packages[i].Description != "" {
			continue
		}
		loc := idx.Packages[i].Location()
		dir := e.locationDir(loc)
		if e.enrichFromDisk(dir, &idx.Packages[i]) {
			if werr := e.writeMetadataFile(dir, idx.Packages[i]); werr != nil {
				log.Warn().Err(werr).Str("repo", repo).Str("name", loc.Name).
					Msg("Failed to persist self-heal enrichment")
			}
			dirty = true
		}
	}

	return idx, dirty, nil
}

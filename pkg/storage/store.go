package storage

import (
	"crypto/md5" //nolint:gosec // MD5sum is a Packages-file field, not a security control
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"pository/pkg/deb"
	"pository/pkg/log"
	"pository/pkg/models"
)

// StoreResult is returned by StorePackage.
type StoreResult struct {
	Metadata models.PackageMetadata
	Replaced bool
}

// locationDir is the directory holding package.deb and metadata.json for loc.
func (e *Engine) locationDir(loc models.PackageLocation) string {
	return filepath.Join(e.repoDir(loc.Repo), loc.Distribution, loc.Component,
		loc.Architecture, loc.Name, loc.Version)
}

// StorePackage writes a package's bytes and metadata atomically: both files
// land via temp-file-then-rename, and the per-repo index is updated only
// after both are durably on disk. Re-uploading the same location overwrites
// in place (upload is idempotent, not append-only) and is reported via
// Replaced.
func (e *Engine) StorePackage(meta models.PackageMetadata, content io.Reader) (*StoreResult, error) {
	loc := meta.Location()
	lock := e.locationMutex(locationKey(loc))
	lock.Lock()
	defer lock.Unlock()

	dir := e.locationDir(loc)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}

	hasher := sha256.New()
	md5Hasher := md5.New() //nolint:gosec // see import comment
	debPath := filepath.Join(dir, "package.deb")
	tmp, err := os.CreateTemp(dir, "package-*.deb.tmp")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	size, err := io.Copy(io.MultiWriter(tmp, hasher, md5Hasher), content)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	_, statErr := os.Stat(debPath)
	replaced := statErr == nil

	if err := os.Rename(tmpPath, debPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	meta.Size = size
	meta.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	meta.MD5 = hex.EncodeToString(md5Hasher.Sum(nil))
	meta.Mime = models.DebianMime

	if meta.Description == "" {
		e.enrichFromDisk(dir, &meta)
	}

	if err := e.writeMetadataFile(dir, meta); err != nil {
		return nil, err
	}

	if err := e.updateIndex(loc, meta); err != nil {
		return nil, err
	}

	log.Info().Str("repo", loc.Repo).Str("name", loc.Name).Str("version", loc.Version).
		Str("architecture", loc.Architecture).Int64("size", size).Bool("replaced", replaced).
		Msg("Package stored")

	return &StoreResult{Metadata: meta, Replaced: replaced}, nil
}

func (e *Engine) writeMetadataFile(dir string, meta models.PackageMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "metadata.json")
	tmp, err := os.CreateTemp(dir, "metadata-*.json.tmp")
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
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// enrichFromDisk backfills meta's optional control fields by re-parsing the
// artifact already on disk (via the deb package's native-then-dpkg-deb
// pipeline), for cases where the original upload's control stanza lacked a
// description. It reports whether it found anything worth merging; any
// failure to re-parse is logged and left for a later self-heal pass.
func (e *Engine) enrichFromDisk(dir string, meta *models.PackageMetadata) bool {
	debPath := filepath.Join(dir, "package.deb")
	ctrl, err := deb.Parse(debPath, e.DpkgDebPath)
	if err != nil {
		log.Warn().Err(err).Str("name", meta.Name).Str("version", meta.Version).
			Msg("Enrichment fallback could not re-parse artifact")
		return false
	}
	if ctrl.Description == "" {
		return false
	}

	meta.Description = ctrl.Description
	meta.MultiArch = ctrl.MultiArch
	meta.Maintainer = ctrl.Maintainer
	meta.Depends = ctrl.Depends
	meta.PreDepends = ctrl.PreDepends
	meta.Suggests = ctrl.Suggests
	meta.Conflicts = ctrl.Conflicts
	meta.Breaks = ctrl.Breaks
	meta.Replaces = ctrl.Replaces
	meta.Provides = ctrl.Provides
	meta.Homepage = ctrl.Homepage
	meta.Section = ctrl.Section
	meta.Priority = ctrl.Priority
	meta.InstalledSize = ctrl.InstalledSize
	return true
}

// updateIndex replaces any existing entry for loc (matched on locationKey,
// i.e. repo/distribution/component/architecture/name/version) with meta,
// or appends meta if none existed.
func (e *Engine) updateIndex(loc models.PackageLocation, meta models.PackageMetadata) error {
	repoLock := e.repoMutex(loc.Repo)
	repoLock.Lock()
	defer repoLock.Unlock()

	idx, err := e.loadIndex(loc.Repo)
	if err != nil {
		return err
	}

	key := locationKey(loc)
	replaced := false
	for i, pkg := range idx.Packages {
		if locationKey(pkg.Location()) == key {
			idx.Packages[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Packages = append(idx.Packages, meta)
	}

	return e.saveIndex(loc.Repo, idx)
}

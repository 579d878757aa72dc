package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"pository/pkg/models"
)

// GetPackageMetadata returns the stored metadata for loc, or
// PackageNotFoundError if nothing is stored there.
func (e *Engine) GetPackageMetadata(loc models.PackageLocation) (*models.PackageMetadata, error) {
	lock := e.locationMutex(locationKey(loc))
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(e.locationDir(loc), "metadata.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, PackageNotFoundError{Location: loc}
	}
	if err != nil {
		return nil, err
	}

	var meta models.PackageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// GetPackageFile returns a path on disk to loc's package.deb, suitable for
// http.ServeFile or os.Open. The caller must not delete or rename it.
func (e *Engine) GetPackageFile(loc models.PackageLocation) (string, error) {
	lock := e.locationMutex(locationKey(loc))
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(e.locationDir(loc), "package.deb")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", PackageNotFoundError{Location: loc}
	} else if err != nil {
		return "", err
	}
	return path, nil
}

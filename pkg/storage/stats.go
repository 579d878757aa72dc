package storage

import (
	"os"
	"syscall"

	"pository/pkg/log"
	"pository/pkg/models"
)

// GetStorageStats walks repo's index and totals artifact size and count.
// Pass an empty repo to report across every repo under RootDir.
func (e *Engine) GetStorageStats(repo string) (*models.StorageStats, error) {
	if repo != "" {
		pkgs, err := e.ListPackages(repo, ListFilter{})
		if err != nil {
			return nil, err
		}
		return sumStats(pkgs), nil
	}

	entries, err := os.ReadDir(e.RootDir)
	if os.IsNotExist(err) {
		return &models.StorageStats{}, nil
	}
	if err != nil {
		return nil, err
	}

	stats := &models.StorageStats{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pkgs, err := e.ListPackages(entry.Name(), ListFilter{})
		if err != nil {
			return nil, err
		}
		repoStats := sumStats(pkgs)
		stats.TotalSize += repoStats.TotalSize
		stats.PackageCount += repoStats.PackageCount
	}
	return stats, nil
}

func sumStats(pkgs []models.PackageMetadata) *models.StorageStats {
	stats := &models.StorageStats{PackageCount: len(pkgs)}
	for _, pkg := range pkgs {
		stats.TotalSize += pkg.Size
	}
	return stats
}

// IsStorageReady reports whether RootDir exists (creating it if missing),
// accepts a new file (a probe file is created and removed again), and its
// filesystem still has free blocks according to Statfs.
func (e *Engine) IsStorageReady() bool {
	if err := os.MkdirAll(e.RootDir, dirPerm); err != nil {
		log.Error().Err(err).Str("root", e.RootDir).Msg("Storage root not writable")
		return false
	}

	probe, err := os.CreateTemp(e.RootDir, ".ready-*")
	if err != nil {
		log.Error().Err(err).Str("root", e.RootDir).Msg("Storage root not writable")
		return false
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	var stat syscall.Statfs_t
	if err := syscall.Statfs(e.RootDir, &stat); err != nil {
		log.Error().Err(err).Str("root", e.RootDir).Msg("Failed to statfs storage root")
		return false
	}
	return stat.Bfree > 0
}

// DiskFree returns free bytes on RootDir's filesystem, for health reporting.
func (e *Engine) DiskFree() (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(e.RootDir, &stat); err != nil {
		return 0, err
	}
	bsize := stat.Bsize
	if bsize < 0 {
		bsize = 0
	}
	return int64(stat.Bavail) * bsize, nil //nolint:gosec // disk sizes fit comfortably in int64
}

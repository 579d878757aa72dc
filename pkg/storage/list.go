package storage

import (
	"os"

	"pository/pkg/models"
)

// ListFilter narrows ListPackages to a subset of a repo's index. Empty
// fields match anything.
type ListFilter struct {
	Distribution string
	Component    string
	Architecture string
	Name         string
}

func (f ListFilter) matches(pkg models.PackageMetadata) bool {
	if f.Distribution != "" && f.Distribution != pkg.Distribution {
		return false
	}
	if f.Component != "" && f.Component != pkg.Component {
		return false
	}
	if f.Architecture != "" && f.Architecture != pkg.Architecture {
		return false
	}
	if f.Name != "" && f.Name != pkg.Name {
		return false
	}
	return true
}

// ListPackages returns the packages in repo's index matching filter, in
// index order.
func (e *Engine) ListPackages(repo string, filter ListFilter) ([]models.PackageMetadata, error) {
	repoLock := e.repoMutex(repo)
	repoLock.Lock()
	defer repoLock.Unlock()

	idx, err := e.loadIndex(repo)
	if err != nil {
		return nil, err
	}

	out := make([]models.PackageMetadata, 0, len(idx.Packages))
	for _, pkg := range idx.Packages {
		if filter.matches(pkg) {
			out = append(out, pkg)
		}
	}
	return out, nil
}

// ListRepos returns the name of every repo with data under RootDir, for
// callers that need to aggregate across repos rather than querying one.
func (e *Engine) ListRepos() ([]string, error) {
	entries, err := os.ReadDir(e.RootDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	repos := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			repos = append(repos, entry.Name())
		}
	}
	return repos, nil
}

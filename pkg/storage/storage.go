// Package storage is the storage engine: the sole owner of the on-disk
// data tree. Every other component that needs to read or write a package
// goes through here; nothing else is allowed to touch the filesystem
// layout directly.
//
// Layout:
//
//	<root>/<repo>/index.json
//	<root>/<repo>/<distribution>/<component>/<architecture>/<name>/<version>/package.deb
//	<root>/<repo>/<distribution>/<component>/<architecture>/<name>/<version>/metadata.json
package storage

import (
	"sync"

	"pository/pkg/models"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// PackageNotFoundError is returned when a location has no stored package.
type PackageNotFoundError struct {
	Location models.PackageLocation
}

func (e PackageNotFoundError) Error() string {
	return "package not found"
}

// RepoNotFoundError names a repo that has no index on disk. No Engine
// method returns it: a repo without an index reads as an empty one.
type RepoNotFoundError struct {
	Repo string
}

func (e RepoNotFoundError) Error() string {
	return "repository not found"
}

// Engine is the storage engine. It owns the data tree rooted at RootDir and
// serializes access to it with a per-location mutex (so concurrent
// operations on two different packages never block each other) and a
// per-repo mutex (so index reads/writes for one repo never interleave).
type Engine struct {
	RootDir string

	// DpkgDebPath is passed through to the deb parser's dpkg-deb fallback
	// whenever the storage engine needs to re-extract control metadata
	// from an artifact already on disk. Empty disables the fallback.
	DpkgDebPath string

	locksGuard sync.Mutex
	locks      map[string]*sync.Mutex

	indexGuard sync.Mutex
	indexLocks map[string]*sync.Mutex

	cacheGuard sync.RWMutex
	cache      map[string]*models.PackageIndex
}

// New creates a storage engine rooted at rootDir. rootDir is created on
// first write if it doesn't already exist.
func New(rootDir string) *Engine {
	return &Engine{
		RootDir:    rootDir,
		locks:      make(map[string]*sync.Mutex),
		indexLocks: make(map[string]*sync.Mutex),
		cache:      make(map[string]*models.PackageIndex),
	}
}

func (e *Engine) locationMutex(key string) *sync.Mutex {
	e.locksGuard.Lock()
	defer e.locksGuard.Unlock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	return m
}

func (e *Engine) repoMutex(repo string) *sync.Mutex {
	e.indexGuard.Lock()
	defer e.indexGuard.Unlock()
	m, ok := e.indexLocks[repo]
	if !ok {
		m = &sync.Mutex{}
		e.indexLocks[repo] = m
	}
	return m
}

// locationKey is the cache/lock key for a location: all six fields, Repo
// first, joined with "/".
func locationKey(loc models.PackageLocation) string {
	return loc.Repo + "/" + loc.Distribution + "/" + loc.Component + "/" +
		loc.Architecture + "/" + loc.Name + "/" + loc.Version
}

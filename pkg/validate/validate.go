// Package validate sanitizes and validates the path-bearing components of
// a package location before anything touches the filesystem.
package validate

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrEmptyComponent is returned when a location component is empty after
// sanitization.
var ErrEmptyComponent = errors.New("empty path component")

// ErrInvalidName is returned when a package name fails its format check.
var ErrInvalidName = errors.New("invalid package name")

// ErrInvalidVersion is returned when a version string fails its format check.
var ErrInvalidVersion = errors.New("invalid package version")

// ErrInvalidArchitecture is returned when an architecture tag fails its
// format check.
var ErrInvalidArchitecture = errors.New("invalid architecture")

// ErrRepoNotAllowed is returned when a repo isn't in the configured
// allow-list.
var ErrRepoNotAllowed = errors.New("repository not allowed")

var (
	namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]*$`)
	// version intentionally also accepts ':' for epochs and '~' for the
	// Debian "earlier than nothing" marker.
	versionPattern      = regexp.MustCompile(`^[a-z0-9][a-z0-9.+~:-]*$`)
	architecturePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// KnownArchitectures lists the Debian architecture tags recognized without
// needing to match the fallback pattern. Not exhaustive, just the common
// ones worth naming explicitly.
var KnownArchitectures = map[string]bool{
	"all": true, "amd64": true, "arm64": true, "armhf": true, "armel": true,
	"i386": true, "mips64el": true, "mipsel": true, "ppc64el": true,
	"riscv64": true, "s390x": true, "source": true,
}

var fold = cases.Fold()

// SanitizePath strips path separators, collapses ".." segments, and removes
// leading "." runs from a single path component. It never returns a string
// containing a separator or a traversal segment.
func SanitizePath(s string) string {
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "")
	}
	s = strings.TrimLeft(s, ".")
	return s
}

// Component sanitizes a single path-bearing field and rejects it if
// sanitization leaves nothing behind.
func Component(s string) (string, error) {
	clean := SanitizePath(s)
	if clean == "" {
		return "", ErrEmptyComponent
	}
	return clean, nil
}

// FoldCase returns the canonical case-folded form used for case-insensitive
// pattern matching. The validators return the input in its original case;
// the folded form is never stored or used as a key.
func FoldCase(s string) string {
	return fold.String(s)
}

// Name validates a package name against ^[a-z0-9][a-z0-9+.-]*$ (case
// insensitively) after sanitizing it as a path component.
func Name(s string) (string, error) {
	clean, err := Component(s)
	if err != nil {
		return "", err
	}
	if !namePattern.MatchString(FoldCase(clean)) {
		return "", ErrInvalidName
	}
	return clean, nil
}

// Version validates a package version against ^[a-z0-9][a-z0-9.+~:-]*$
// after sanitizing it as a path component.
func Version(s string) (string, error) {
	clean, err := Component(s)
	if err != nil {
		return "", err
	}
	if !versionPattern.MatchString(FoldCase(clean)) {
		return "", ErrInvalidVersion
	}
	return clean, nil
}

// Architecture validates an architecture tag: either a known Debian arch
// tag or a string matching ^[a-z][a-z0-9-]*$. Empty input defaults to
// "all".
func Architecture(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "all", nil
	}
	clean, err := Component(s)
	if err != nil {
		return "", err
	}
	folded := FoldCase(clean)
	if KnownArchitectures[folded] || architecturePattern.MatchString(folded) {
		return clean, nil
	}
	return "", ErrInvalidArchitecture
}

// Repo sanitizes a repo identifier and, if allowList is non-empty, checks
// that the repo belongs to it.
func Repo(s string, allowList []string) (string, error) {
	clean, err := Component(s)
	if err != nil {
		return "", err
	}
	if len(allowList) == 0 {
		return clean, nil
	}
	for _, allowed := range allowList {
		if allowed == clean {
			return clean, nil
		}
	}
	return "", ErrRepoNotAllowed
}

// Distribution sanitizes a distribution identifier.
func Distribution(s string) (string, error) {
	return Component(s)
}

// ComponentName sanitizes an apt component identifier (e.g. "main").
func ComponentName(s string) (string, error) {
	return Component(s)
}

// LanguageTag is exported so other packages fold case with the same
// language-neutral rule used here, rather than inventing their own.
var LanguageTag = language.Und

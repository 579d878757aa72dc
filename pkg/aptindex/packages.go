// Package aptindex synthesizes apt-compatible Packages and Release files
// from the storage engine's package index (C8). It never rewrites or
// reformats a package's own control data beyond what's required to lay it
// out in a Packages stanza — in particular it never invents a value for
// Multi-Arch or Installed-Size a package didn't declare.
package aptindex

import (
	"crypto/md5" //nolint:gosec // Description-md5 is an apt wire field, not a security control
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"pository/pkg/models"
)

// packagesFieldOrder fixes the stanza field order every rendered Packages
// entry follows, matching what dpkg-scanpackages emits.
var packagesFieldOrder = []string{
	"Package", "Version", "Architecture", "Maintainer", "Multi-Arch",
	"Homepage", "Section", "Priority", "Pre-Depends", "Depends", "Suggests",
	"Conflicts", "Breaks", "Replaces", "Provides", "Installed-Size",
	"Filename", "Size", "SHA256", "MD5sum", "Description", "Description-md5",
}

func stanzaFields(pkg models.PackageMetadata) map[string]string {
	description := pkg.Description
	if description == "" {
		description = pkg.Name + " " + pkg.Version
	}

	fields := map[string]string{
		"Package":         pkg.Name,
		"Version":         pkg.Version,
		"Architecture":    pkg.Architecture,
		"Filename":        poolPath(pkg),
		"Size":            fmt.Sprintf("%d", pkg.Size),
		"SHA256":          pkg.SHA256,
		"Description":     description,
		"Description-md5": descriptionMD5(description),
	}
	// Optional fields are included only when the package itself declared
	// them — never synthesized, per the optional-field parity invariant.
	setIfPresent(fields, "Maintainer", pkg.Maintainer)
	setIfPresent(fields, "Installed-Size", pkg.InstalledSize)
	setIfPresent(fields, "Depends", pkg.Depends)
	setIfPresent(fields, "Pre-Depends", pkg.PreDepends)
	setIfPresent(fields, "Suggests", pkg.Suggests)
	setIfPresent(fields, "Conflicts", pkg.Conflicts)
	setIfPresent(fields, "Breaks", pkg.Breaks)
	setIfPresent(fields, "Replaces", pkg.Replaces)
	setIfPresent(fields, "Provides", pkg.Provides)
	setIfPresent(fields, "Section", pkg.Section)
	setIfPresent(fields, "Priority", pkg.Priority)
	setIfPresent(fields, "Homepage", pkg.Homepage)
	setIfPresent(fields, "Multi-Arch", pkg.MultiArch)
	setIfPresent(fields, "MD5sum", pkg.MD5)
	return fields
}

func setIfPresent(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// descriptionMD5 hashes description plus a trailing newline, matching the
// convention dpkg-scanpackages / apt's Description-md5 field uses.
func descriptionMD5(description string) string {
	sum := md5.Sum([]byte(description + "\n")) //nolint:gosec // see import comment
	return hex.EncodeToString(sum[:])
}

func poolPath(pkg models.PackageMetadata) string {
	return fmt.Sprintf("pool/%s/%s/%s/%s_%s_%s.deb",
		pkg.Distribution, pkg.Component, pkg.Architecture, pkg.Name, pkg.Version, pkg.Architecture)
}

// renderStanza writes one package's fields in packagesFieldOrder,
// multi-line fields (e.g. a wrapped Description) indented per RFC-822
// continuation rules.
func renderStanza(fields map[string]string) string {
	var b strings.Builder
	for _, key := range packagesFieldOrder {
		value, ok := fields[key]
		if !ok {
			continue
		}
		lines := strings.Split(value, "\n")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(lines[0])
		b.WriteByte('\n')
		for _, cont := range lines[1:] {
			if cont == "" {
				b.WriteString(" .\n")
			} else {
				b.WriteString(" ")
				b.WriteString(cont)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// RenderPackages produces the contents of a binary-<architecture>/Packages
// file for one distribution/component/architecture slice. Packages whose
// own architecture is "all" are included in every architecture's slice
// (arch=all fan-out); no slice is ever generated for architecture "all"
// itself, since apt never fetches binary-all/Packages directly.
func RenderPackages(pkgs []models.PackageMetadata, architecture string) (string, error) {
	if architecture == "all" {
		return "", ErrNoAllSlice
	}

	matching := make([]models.PackageMetadata, 0, len(pkgs))
	for _, pkg := range pkgs {
		if pkg.Architecture == architecture || pkg.Architecture == "all" {
			matching = append(matching, pkg)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].Name != matching[j].Name {
			return matching[i].Name < matching[j].Name
		}
		return matching[i].Version < matching[j].Version
	})

	var b strings.Builder
	for _, pkg := range matching {
		b.WriteString(renderStanza(stanzaFields(pkg)))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// ErrNoAllSlice is returned by RenderPackages when asked for the
// architecture "all" slice, which apt never requests: arch=all packages
// are folded into every real architecture's Packages file instead.
var ErrNoAllSlice = fmt.Errorf("binary-all/Packages is not served; arch=all packages are folded into every architecture's Packages file")

// Architectures returns the distinct real (non-"all") architectures present
// in pkgs, for enumerating which binary-<arch> slices to build. amd64 is
// always included, even when no amd64 package is stored, since apt clients
// on that architecture expect the slice to exist.
func Architectures(pkgs []models.PackageMetadata) []string {
	seen := map[string]bool{"amd64": true}
	out := []string{"amd64"}
	for _, pkg := range pkgs {
		if pkg.Architecture == "all" || seen[pkg.Architecture] {
			continue
		}
		seen[pkg.Architecture] = true
		out = append(out, pkg.Architecture)
	}
	sort.Strings(out)
	return out
}

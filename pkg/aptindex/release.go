package aptindex

import (
	"bytes"
	"compress/gzip"
	"crypto/md5" //nolint:gosec // required for apt wire compatibility, not for security
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"pository/pkg/models"
)

// ReleaseConfig carries the fields the spec's Origin/Label/Description
// block needs, layered on top of the structural Suite/Codename/Date/
// Architectures/Components fields that are derived from the request and
// the index itself.
type ReleaseConfig struct {
	Origin      string
	Label       string
	Description string
}

// IndexFile is one entry (Packages or Packages.gz) that a rendered Release
// file's MD5Sum/SHA256 blocks describe.
type IndexFile struct {
	Path string
	Data []byte
}

// BuildPackagesFiles renders, for each component, the plain-text Packages
// file for every architecture present in that component (amd64 is always
// included, even with no packages) plus its gzip-compressed sibling, keyed by
// their path relative to the distribution root (e.g.
// "main/binary-amd64/Packages").
func BuildPackagesFiles(pkgs []PerComponentPackages) ([]IndexFile, error) {
	var files []IndexFile
	for _, cp := range pkgs {
		for _, arch := range Architectures(cp.Packages) {
			plain, err := RenderPackages(cp.Packages, arch)
			if err != nil {
				return nil, err
			}
			base := fmt.Sprintf("%s/binary-%s/Packages", cp.Component, arch)
			files = append(files, IndexFile{Path: base, Data: []byte(plain)})

			var gzBuf bytes.Buffer
			gw := gzip.NewWriter(&gzBuf)
			if _, err := gw.Write([]byte(plain)); err != nil {
				return nil, err
			}
			if err := gw.Close(); err != nil {
				return nil, err
			}
			files = append(files, IndexFile{Path: base + ".gz", Data: gzBuf.Bytes()})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// PerComponentPackages groups a component's packages together for
// BuildPackagesFiles, which needs to know which component each package's
// pool path falls under.
type PerComponentPackages struct {
	Component string
	Packages  []models.PackageMetadata
}

// RenderRelease builds the Release file for one distribution: the
// Origin/Label/Suite/Codename/Date header followed by a component and
// architecture list and MD5Sum/SHA256 blocks for every rendered index
// file. Pository never signs this file; operators relying on apt's
// signature verification must configure the client with
// [trusted=yes] or wrap this output with their own detached signature.
func RenderRelease(cfg ReleaseConfig, suite, codename string, components, architectures []string, files []IndexFile) string {
	var b strings.Builder
	writeField(&b, "Origin", cfg.Origin)
	writeField(&b, "Label", cfg.Label)
	writeField(&b, "Suite", suite)
	writeField(&b, "Codename", codename)
	b.WriteString("Date: ")
	b.WriteString(time.Now().UTC().Format(time.RFC1123))
	b.WriteByte('\n')
	writeField(&b, "Architectures", strings.Join(architectures, " "))
	writeField(&b, "Components", strings.Join(components, " "))
	writeField(&b, "Description", cfg.Description)

	b.WriteString("MD5Sum:\n")
	for _, f := range files {
		sum := md5.Sum(f.Data) //nolint:gosec // apt wire format, not a security boundary
		fmt.Fprintf(&b, " %s %d %s\n", hex.EncodeToString(sum[:]), len(f.Data), f.Path)
	}
	b.WriteString("SHA256:\n")
	for _, f := range files {
		sum := sha256.Sum256(f.Data)
		fmt.Fprintf(&b, " %s %d %s\n", hex.EncodeToString(sum[:]), len(f.Data), f.Path)
	}

	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

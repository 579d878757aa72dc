// Package deb extracts the control stanza out of an uploaded .deb archive:
// Name, Version, Architecture, and every other control field the upload
// pipeline mirrors into package metadata.
package deb

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Control is the subset of a parsed .deb control stanza the storage engine
// cares about. The required fields are always set; the rest are left at
// their zero value (empty string) when the control file didn't declare
// them, per the optional-field parity invariant — this package never
// synthesizes a value the package itself didn't declare.
type Control struct {
	Name         string
	Version      string
	Architecture string

	Description   string
	MultiArch     string
	Maintainer    string
	Depends       string
	PreDepends    string
	Suggests      string
	Conflicts     string
	Breaks        string
	Replaces      string
	Provides      string
	Homepage      string
	Section       string
	Priority      string
	InstalledSize string
}

// dpkgDebTimeout bounds how long the dpkg-deb fallback may run; when it
// runs out, the fallback fails with ErrNotDebianPackage.
const dpkgDebTimeout = 15 * time.Second

// fieldOrder is the set of control fields this package mirrors into
// package metadata, shared between the ar path and the dpkg-deb fallback
// path so both populate the same Control struct the same way.
var fieldOrder = []string{
	"Package", "Version", "Architecture", "Description", "Multi-Arch",
	"Maintainer", "Depends", "Pre-Depends", "Suggests", "Conflicts",
	"Breaks", "Replaces", "Provides", "Homepage", "Section", "Priority",
	"Installed-Size",
}

func controlFromFields(fields *ControlFields) *Control {
	return &Control{
		Name:          fields.Get("Package"),
		Version:       fields.Get("Version"),
		Architecture:  fields.Get("Architecture"),
		Description:   fields.Get("Description"),
		MultiArch:     fields.Get("Multi-Arch"),
		Maintainer:    fields.Get("Maintainer"),
		Depends:       fields.Get("Depends"),
		PreDepends:    fields.Get("Pre-Depends"),
		Suggests:      fields.Get("Suggests"),
		Conflicts:     fields.Get("Conflicts"),
		Breaks:        fields.Get("Breaks"),
		Replaces:      fields.Get("Replaces"),
		Provides:      fields.Get("Provides"),
		Homepage:      fields.Get("Homepage"),
		Section:       fields.Get("Section"),
		Priority:      fields.Get("Priority"),
		InstalledSize: fields.Get("Installed-Size"),
	}
}

// ParseBytes extracts the control stanza from a .deb file already loaded
// into memory. It reads the ar archive's debian-binary member to confirm
// the 2.x package format, locates the control.tar* member, decompresses
// it, and parses the ./control entry within.
func ParseBytes(data []byte) (*Control, error) {
	entries, err := readAr(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	return parseFromAr(entries)
}

// Parse extracts the control stanza from a .deb file on disk. It tries the
// native ar/tar pipeline first; if the archive uses a compression scheme
// or layout this package doesn't understand, it falls back to shelling
// out to dpkg-deb, bounded by dpkgDebTimeout. A file that isn't an ar
// archive at all is returned as ErrInvalidArchive without trying dpkg-deb.
// dpkgDebPath is the path to the dpkg-deb binary; an empty string disables
// the fallback.
func Parse(path string, dpkgDebPath string) (*Control, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ctrl, perr := ParseBytes(data)
	if perr == nil {
		return ctrl, nil
	}
	if dpkgDebPath == "" || errors.Is(perr, ErrInvalidArchive) {
		return nil, perr
	}
	return parseWithDpkgDeb(path, dpkgDebPath)
}

func parseFromAr(entries []arEntry) (*Control, error) {
	bin := findEntry(entries, "debian-binary")
	if bin == nil {
		return nil, ErrNotDebianPackage
	}
	version := strings.TrimSpace(string(bin.Data))
	if !strings.HasPrefix(version, "2.") {
		return nil, ErrNotDebianPackage
	}

	member := findEntry(entries, "control.tar")
	if member == nil {
		return nil, ErrNoControlFile
	}
	if findEntry(entries, "data.tar") == nil {
		return nil, ErrNotDebianPackage
	}

	decompressed, err := decompressMember(member.Name, member.Data)
	if err != nil {
		return nil, err
	}

	fields, err := extractControlStanza(decompressed)
	if err != nil {
		return nil, err
	}

	ctrl := controlFromFields(fields)
	if ctrl.Name == "" || ctrl.Version == "" || ctrl.Architecture == "" {
		return nil, ErrNoControlFile
	}
	return ctrl, nil
}

func extractControlStanza(r io.Reader) (*ControlFields, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, ErrNoControlFile
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if name == "control" {
			return parseControl(tr)
		}
	}
}

// parseWithDpkgDeb shells out to "dpkg-deb --field <path> <fields...>" for
// packages whose archive this package can't otherwise decode.
func parseWithDpkgDeb(path string, dpkgDebBin string) (*Control, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dpkgDebTimeout)
	defer cancel()

	args := append([]string{"--field", path}, fieldOrder...)
	cmd := exec.CommandContext(ctx, dpkgDebBin, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, ErrNotDebianPackage
	}

	fields, err := parseControl(strings.NewReader(string(out)))
	if err != nil {
		return nil, err
	}
	ctrl := controlFromFields(fields)
	if ctrl.Name == "" || ctrl.Version == "" || ctrl.Architecture == "" {
		return nil, ErrNotDebianPackage
	}
	return ctrl, nil
}

// InstalledSizeInt parses a control file's Installed-Size field as a
// number; ok is false when the field wasn't declared or isn't numeric.
func InstalledSizeInt(s string) (n int64, ok bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

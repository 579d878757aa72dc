package deb

import "errors"

// ErrInvalidArchive is returned when the uploaded file isn't a well-formed
// ar archive at all.
var ErrInvalidArchive = errors.New("invalid ar archive")

// ErrNotDebianPackage is returned when the ar archive is well-formed but
// doesn't carry a debian-binary member, that member doesn't declare a
// version this package understands, or the data.tar member is missing. The
// dpkg-deb fallback also returns it when dpkg-deb fails or times out.
var ErrNotDebianPackage = errors.New("not a Debian package")

// ErrUnsupportedFormat is returned when the control tarball is present but
// compressed with a codec this package can't decompress.
var ErrUnsupportedFormat = errors.New("unsupported Debian package format")

// ErrNoControlFile is returned when the archive has no control.tar member,
// the control member's tarball has no ./control entry, or the stanza lacks
// Package, Version or Architecture.
var ErrNoControlFile = errors.New("control file missing from package")

package deb

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// decompressMember wraps r according to the codec implied by the ar member
// name's extension. Debian has shipped control/data tarballs compressed
// with gzip, xz, zstd, bzip2, and (rarely) uncompressed, across its
// history; dpkg accepts all of them, so this does too.
func decompressMember(name string, data []byte) (io.Reader, error) {
	r := bytes.NewReader(data)
	switch {
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	case strings.HasSuffix(name, ".tar.gz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(name, ".tar.xz"):
		return xz.NewReader(r)
	case strings.HasSuffix(name, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case strings.HasSuffix(name, ".tar.bz2"):
		return bzip2.NewReader(r), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

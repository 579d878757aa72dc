package deb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DebTestSuite exercises the ar/tar/control pipeline against synthetic
// .deb archives built in memory, so it never depends on a real package
// being present on disk.
type DebTestSuite struct {
	suite.Suite
}

func arMember(name string, data []byte) []byte {
	var buf bytes.Buffer
	header := make([]byte, arHeaderSize)
	copy(header[0:], name)
	for i := len(name); i < arNameField; i++ {
		header[i] = ' '
	}
	sizeStr := []byte(itoa(len(data)))
	copy(header[arSizeOffset:], sizeStr)
	for i := arSizeOffset + len(sizeStr); i < arSizeOffset+arSizeField; i++ {
		header[i] = ' '
	}
	buf.Write(header)
	buf.Write(data)
	if len(data)%2 != 0 {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func buildControlTarGz(stanza string) []byte {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	_ = tw.WriteHeader(&tar.Header{Name: "./control", Size: int64(len(stanza)), Mode: 0644})
	_, _ = tw.Write([]byte(stanza))
	_ = tw.Close()

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, _ = gw.Write(tarBuf.Bytes())
	_ = gw.Close()
	return gzBuf.Bytes()
}

func buildDeb(stanza string) []byte {
	var buf bytes.Buffer
	buf.WriteString(arMagicForTest())
	buf.Write(arMember("debian-binary", []byte("2.0\n")))
	buf.Write(arMember("control.tar.gz", buildControlTarGz(stanza)))
	buf.Write(arMember("data.tar.gz", []byte{}))
	return buf.Bytes()
}

func arMagicForTest() string {
	return arMagic
}

func (s *DebTestSuite) TestParseBytesExtractsRequiredFields() {
	stanza := "Package: widget\nVersion: 1.2.3\nArchitecture: amd64\nMaintainer: Ops <ops@example.com>\n\n"
	ctrl, err := ParseBytes(buildDeb(stanza))
	s.Require().NoError(err)
	s.Equal("widget", ctrl.Name)
	s.Equal("1.2.3", ctrl.Version)
	s.Equal("amd64", ctrl.Architecture)
	s.Equal("Ops <ops@example.com>", ctrl.Maintainer)
}

func (s *DebTestSuite) TestParseBytesOmitsUndeclaredFields() {
	stanza := "Package: widget\nVersion: 1.2.3\nArchitecture: all\n\n"
	ctrl, err := ParseBytes(buildDeb(stanza))
	s.Require().NoError(err)
	s.Empty(ctrl.MultiArch)
	s.Empty(ctrl.InstalledSize)
}

func (s *DebTestSuite) TestParseBytesRejectsNonDebArchive() {
	_, err := ParseBytes([]byte("not an ar archive at all"))
	s.Error(err)
}

func (s *DebTestSuite) TestParseBytesRejectsMissingControl() {
	var buf bytes.Buffer
	buf.WriteString(arMagic)
	buf.Write(arMember("debian-binary", []byte("2.0\n")))
	_, err := ParseBytes(buf.Bytes())
	s.ErrorIs(err, ErrNoControlFile)
}

func (s *DebTestSuite) TestParseBytesRejectsMissingDataTarball() {
	stanza := "Package: widget\nVersion: 1.2.3\nArchitecture: amd64\n\n"
	var buf bytes.Buffer
	buf.WriteString(arMagic)
	buf.Write(arMember("debian-binary", []byte("2.0\n")))
	buf.Write(arMember("control.tar.gz", buildControlTarGz(stanza)))
	_, err := ParseBytes(buf.Bytes())
	s.ErrorIs(err, ErrNotDebianPackage)
}

func (s *DebTestSuite) TestInstalledSizeInt() {
	n, ok := InstalledSizeInt("2048")
	s.True(ok)
	s.Equal(int64(2048), n)

	_, ok = InstalledSizeInt("")
	s.False(ok)

	_, ok = InstalledSizeInt("not-a-number")
	s.False(ok)
}

func (s *DebTestSuite) TestParseControlHandlesContinuationLines() {
	stanza := "Package: widget\nVersion: 1.0\nArchitecture: all\nDescription: short summary\n long paragraph\n .\n more text\n\n"
	fields, err := parseControl(strings.NewReader(stanza))
	s.Require().NoError(err)
	s.Contains(fields.Get("Description"), "short summary")
	s.Contains(fields.Get("Description"), "long paragraph")
}

func TestDebSuite(t *testing.T) {
	suite.Run(t, new(DebTestSuite))
}

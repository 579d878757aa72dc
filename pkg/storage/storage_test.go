package storage

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"pository/pkg/models"
)

func arHeaderBytes(name string, size int) []byte {
	header := make([]byte, 60)
	copy(header, name)
	for i := len(name); i < 16; i++ {
		header[i] = ' '
	}
	sizeStr := strconv.Itoa(size)
	copy(header[48:], sizeStr)
	for i := 48 + len(sizeStr); i < 58; i++ {
		header[i] = ' '
	}
	return header
}

// buildTestDeb assembles a minimal ar archive carrying stanza as its
// control file, for exercising the enrichment path without a real
// dpkg-deb binary on hand.
func buildTestDeb(stanza string) []byte {
	var controlTar bytes.Buffer
	tw := tar.NewWriter(&controlTar)
	_ = tw.WriteHeader(&tar.Header{Name: "./control", Size: int64(len(stanza)), Mode: 0644})
	_, _ = tw.Write([]byte(stanza))
	_ = tw.Close()

	var controlGz bytes.Buffer
	gw := gzip.NewWriter(&controlGz)
	_, _ = gw.Write(controlTar.Bytes())
	_ = gw.Close()

	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")

	bin := []byte("2.0\n")
	buf.Write(arHeaderBytes("debian-binary", len(bin)))
	buf.Write(bin)

	ctrl := controlGz.Bytes()
	buf.Write(arHeaderBytes("control.tar.gz", len(ctrl)))
	buf.Write(ctrl)
	if len(ctrl)%2 != 0 {
		buf.WriteByte('\n')
	}

	buf.Write(arHeaderBytes("data.tar.gz", 0))
	return buf.Bytes()
}

type StorageTestSuite struct {
	suite.Suite
	dir    string
	engine *Engine
}

func (s *StorageTestSuite) SetupTest() {
	dir, err := os.MkdirTemp("", "pository-storage-*")
	s.Require().NoError(err)
	s.dir = dir
	s.engine = New(dir)
}

func (s *StorageTestSuite) TearDownTest() {
	_ = os.RemoveAll(s.dir)
}

func (s *StorageTestSuite) location() models.PackageLocation {
	return models.PackageLocation{
		Repo: "acme", Distribution: "stable", Component: "main",
		Architecture: "amd64", Name: "widget", Version: "1.0.0",
	}
}

func (s *StorageTestSuite) TestStoreAndGetRoundTrips() {
	loc := s.location()
	meta := models.PackageMetadata{
		Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
		Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
		Maintainer: "Ops <ops@example.com>",
	}

	res, err := s.engine.StorePackage(meta, strings.NewReader("fake-deb-contents"))
	s.Require().NoError(err)
	s.False(res.Replaced)
	s.NotEmpty(res.Metadata.SHA256)
	s.Equal(int64(len("fake-deb-contents")), res.Metadata.Size)

	got, err := s.engine.GetPackageMetadata(loc)
	s.Require().NoError(err)
	s.Equal("Ops <ops@example.com>", got.Maintainer)

	path, err := s.engine.GetPackageFile(loc)
	s.Require().NoError(err)
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Equal("fake-deb-contents", string(data))
}

func (s *StorageTestSuite) TestReuploadReplacesIdempotently() {
	loc := s.location()
	meta := models.PackageMetadata{
		Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
		Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
	}

	_, err := s.engine.StorePackage(meta, strings.NewReader("first"))
	s.Require().NoError(err)

	res, err := s.engine.StorePackage(meta, strings.NewReader("second-longer"))
	s.Require().NoError(err)
	s.True(res.Replaced)

	pkgs, err := s.engine.ListPackages(loc.Repo, ListFilter{})
	s.Require().NoError(err)
	s.Len(pkgs, 1, "re-upload must not duplicate the index entry")
}

func (s *StorageTestSuite) TestGetMissingPackageReturnsNotFound() {
	_, err := s.engine.GetPackageMetadata(s.location())
	s.Require().Error(err)
	var notFound PackageNotFoundError
	s.ErrorAs(err, &notFound)
}

func (s *StorageTestSuite) TestDeleteRemovesIndexEntryAndFiles() {
	loc := s.location()
	meta := models.PackageMetadata{
		Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
		Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
	}
	_, err := s.engine.StorePackage(meta, strings.NewReader("payload"))
	s.Require().NoError(err)

	s.Require().NoError(s.engine.DeletePackage(loc))

	_, err = s.engine.GetPackageMetadata(loc)
	s.Require().Error(err)

	pkgs, err := s.engine.ListPackages(loc.Repo, ListFilter{})
	s.Require().NoError(err)
	s.Empty(pkgs)
}

func (s *StorageTestSuite) TestSelfHealBackfillsFromDataTree() {
	loc := s.location()
	meta := models.PackageMetadata{
		Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
		Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
	}
	_, err := s.engine.StorePackage(meta, strings.NewReader("payload"))
	s.Require().NoError(err)

	// Simulate a crash that left metadata.json and package.deb on disk but
	// never got to rewrite index.json, by dropping the in-process cache
	// and the index file, then reloading from a fresh engine.
	s.Require().NoError(os.Remove(s.engine.indexPath(loc.Repo)))
	fresh := New(s.dir)

	pkgs, err := fresh.ListPackages(loc.Repo, ListFilter{})
	s.Require().NoError(err)
	s.Len(pkgs, 1)
	s.Equal("widget", pkgs[0].Name)
}

func (s *StorageTestSuite) TestStorePackageEnrichesMissingDescriptionFromArtifact() {
	loc := s.location()
	debBytes := buildTestDeb("Package: widget\nVersion: 1.0.0\nArchitecture: amd64\nDescription: a small widget\n\n")
	meta := models.PackageMetadata{
		Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
		Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
	}

	res, err := s.engine.StorePackage(meta, bytes.NewReader(debBytes))
	s.Require().NoError(err)
	s.Equal("a small widget", res.Metadata.Description)

	got, err := s.engine.GetPackageMetadata(loc)
	s.Require().NoError(err)
	s.Equal("a small widget", got.Description)
}

func (s *StorageTestSuite) TestSelfHealEnrichesDescriptionFromArtifactOnReload() {
	loc := s.location()
	debBytes := buildTestDeb("Package: widget\nVersion: 1.0.0\nArchitecture: amd64\nDescription: enriched summary\n\n")

	dir := filepath.Join(s.dir, loc.Repo, loc.Distribution, loc.Component, loc.Architecture, loc.Name, loc.Version)
	s.Require().NoError(os.MkdirAll(dir, 0o750))
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "package.deb"), debBytes, 0o640))

	// A metadata.json/index.json pair with no description, as if written
	// by an older version of the parser that never learned it.
	meta := models.PackageMetadata{
		Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
		Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
		Size: int64(len(debBytes)),
	}
	metaData, err := json.Marshal(meta)
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "metadata.json"), metaData, 0o640))

	idx := models.PackageIndex{Packages: []models.PackageMetadata{meta}}
	idxData, err := json.Marshal(idx)
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, loc.Repo, "index.json"), idxData, 0o640))

	fresh := New(s.dir)
	pkgs, err := fresh.ListPackages(loc.Repo, ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(pkgs, 1)
	s.Equal("enriched summary", pkgs[0].Description)

	got, err := fresh.GetPackageMetadata(loc)
	s.Require().NoError(err)
	s.Equal("enriched summary", got.Description, "self-heal must rewrite metadata.json too")
}

func (s *StorageTestSuite) TestListFilterByArchitecture() {
	base := s.location()
	for _, arch := range []string{"amd64", "arm64"} {
		loc := base
		loc.Architecture = arch
		meta := models.PackageMetadata{
			Repo: loc.Repo, Distribution: loc.Distribution, Component: loc.Component,
			Architecture: loc.Architecture, Name: loc.Name, Version: loc.Version,
		}
		_, err := s.engine.StorePackage(meta, strings.NewReader("x"))
		s.Require().NoError(err)
	}

	pkgs, err := s.engine.ListPackages(base.Repo, ListFilter{Architecture: "arm64"})
	s.Require().NoError(err)
	s.Len(pkgs, 1)
	s.Equal("arm64", pkgs[0].Architecture)
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}

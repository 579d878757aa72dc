package aptindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"pository/pkg/models"
)

type AptIndexTestSuite struct {
	suite.Suite
}

func (s *AptIndexTestSuite) pkgs() []models.PackageMetadata {
	return []models.PackageMetadata{
		{Name: "widget", Version: "1.0", Architecture: "amd64", Component: "main", SHA256: "aaa", Size: 10},
		{Name: "gadget", Version: "2.0", Architecture: "all", Component: "main", SHA256: "bbb", Size: 20},
		{Name: "thingy", Version: "3.0", Architecture: "arm64", Component: "main", SHA256: "ccc", Size: 30},
	}
}

func (s *AptIndexTestSuite) TestArchAllFansOutToEveryArchitecture() {
	pkgs := s.pkgs()

	amd64, err := RenderPackages(pkgs, "amd64")
	s.Require().NoError(err)
	s.Contains(amd64, "Package: widget")
	s.Contains(amd64, "Package: gadget")
	s.NotContains(amd64, "Package: thingy")

	arm64, err := RenderPackages(pkgs, "arm64")
	s.Require().NoError(err)
	s.Contains(arm64, "Package: thingy")
	s.Contains(arm64, "Package: gadget")
}

func (s *AptIndexTestSuite) TestNoBinaryAllSliceIsServed() {
	_, err := RenderPackages(s.pkgs(), "all")
	s.Require().ErrorIs(err, ErrNoAllSlice)
}

func (s *AptIndexTestSuite) TestNeverSynthesizesMultiArchOrInstalledSize() {
	pkgs := []models.PackageMetadata{
		{Name: "widget", Version: "1.0", Architecture: "amd64", Component: "main", SHA256: "aaa", Size: 10},
	}
	rendered, err := RenderPackages(pkgs, "amd64")
	s.Require().NoError(err)
	s.NotContains(rendered, "Multi-Arch:")
	s.NotContains(rendered, "Installed-Size:")
}

func (s *AptIndexTestSuite) TestFieldOrderMatchesFixedOrder() {
	pkgs := []models.PackageMetadata{
		{Name: "widget", Version: "1.0", Architecture: "amd64", Component: "main",
			SHA256: "aaa", Size: 10, Maintainer: "Ops <ops@example.com>", Section: "utils"},
	}
	rendered, err := RenderPackages(pkgs, "amd64")
	s.Require().NoError(err)

	packageIdx := strings.Index(rendered, "Package:")
	maintainerIdx := strings.Index(rendered, "Maintainer:")
	sectionIdx := strings.Index(rendered, "Section:")
	filenameIdx := strings.Index(rendered, "Filename:")
	s.True(packageIdx < maintainerIdx)
	s.True(maintainerIdx < sectionIdx)
	s.True(sectionIdx < filenameIdx)
}

func (s *AptIndexTestSuite) TestArchitecturesExcludesAll() {
	archs := Architectures(s.pkgs())
	s.Equal([]string{"amd64", "arm64"}, archs)
}

func (s *AptIndexTestSuite) TestArchitecturesAlwaysIncludesAmd64() {
	pkgs := []models.PackageMetadata{
		{Name: "thingy", Version: "3.0", Architecture: "arm64", Component: "main", SHA256: "ccc", Size: 30},
	}
	s.Equal([]string{"amd64", "arm64"}, Architectures(pkgs))
}

func (s *AptIndexTestSuite) TestDescriptionFallsBackToNameVersion() {
	pkgs := []models.PackageMetadata{
		{Name: "widget", Version: "1.0", Architecture: "amd64", Component: "main", SHA256: "aaa", Size: 10},
	}
	rendered, err := RenderPackages(pkgs, "amd64")
	s.Require().NoError(err)
	s.Contains(rendered, "Description: widget 1.0")
	s.Contains(rendered, "Description-md5:")
}

func (s *AptIndexTestSuite) TestMD5sumFieldRenderedWhenPresent() {
	pkgs := []models.PackageMetadata{
		{Name: "widget", Version: "1.0", Architecture: "amd64", Component: "main",
			SHA256: "aaa", MD5: "deadbeef", Size: 10},
	}
	rendered, err := RenderPackages(pkgs, "amd64")
	s.Require().NoError(err)
	s.Contains(rendered, "MD5sum: deadbeef")
}

func (s *AptIndexTestSuite) TestFilenameIncludesDistributionComponentAndArch() {
	pkgs := []models.PackageMetadata{
		{Name: "widget", Version: "1.0", Architecture: "amd64", Distribution: "stable",
			Component: "main", SHA256: "aaa", Size: 10},
	}
	rendered, err := RenderPackages(pkgs, "amd64")
	s.Require().NoError(err)
	s.Contains(rendered, "Filename: pool/stable/main/amd64/widget_1.0_amd64.deb")
}

func (s *AptIndexTestSuite) TestRenderReleaseIncludesChecksumBlocks() {
	files, err := BuildPackagesFiles([]PerComponentPackages{{Component: "main", Packages: s.pkgs()}})
	s.Require().NoError(err)
	s.NotEmpty(files)

	release := RenderRelease(ReleaseConfig{Origin: "Pository", Label: "Pository"},
		"stable", "stable", []string{"main"}, Architectures(s.pkgs()), files)
	s.Contains(release, "Origin: Pository")
	s.Contains(release, "MD5Sum:")
	s.Contains(release, "SHA256:")
}

func TestAptIndexSuite(t *testing.T) {
	suite.Run(t, new(AptIndexTestSuite))
}

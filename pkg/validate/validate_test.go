package validate

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ValidateTestSuite struct {
	suite.Suite
}

func (s *ValidateTestSuite) TestSanitizePathStripsSeparatorsAndTraversal() {
	s.Equal("etcpasswd", SanitizePath("../../etc/passwd"))
	s.Equal("foobar", SanitizePath("foo\\bar"))
}

func (s *ValidateTestSuite) TestNameRejectsEmptyAfterSanitization() {
	_, err := Name("../../")
	s.ErrorIs(err, ErrEmptyComponent)
}

func (s *ValidateTestSuite) TestNameRejectsLeadingUnderscore() {
	_, err := Name("_leading-underscore")
	s.ErrorIs(err, ErrInvalidName)
}

func (s *ValidateTestSuite) TestNameAcceptsCaseInsensitively() {
	name, err := Name("Widget-Tool")
	s.Require().NoError(err)
	s.Equal("Widget-Tool", name)
}

func (s *ValidateTestSuite) TestVersionAcceptsEpochAndTilde() {
	version, err := Version("1:2.0~rc1-1")
	s.Require().NoError(err)
	s.Equal("1:2.0~rc1-1", version)
}

func (s *ValidateTestSuite) TestArchitectureDefaultsToAllWhenEmpty() {
	arch, err := Architecture("")
	s.Require().NoError(err)
	s.Equal("all", arch)
}

func (s *ValidateTestSuite) TestArchitectureAcceptsKnownAndUnknownShapes() {
	arch, err := Architecture("amd64")
	s.Require().NoError(err)
	s.Equal("amd64", arch)

	arch, err = Architecture("loong64")
	s.Require().NoError(err)
	s.Equal("loong64", arch)
}

func (s *ValidateTestSuite) TestArchitectureRejectsInvalidShape() {
	_, err := Architecture("123-bad")
	s.ErrorIs(err, ErrInvalidArchitecture)
}

func (s *ValidateTestSuite) TestRepoEnforcesAllowList() {
	_, err := Repo("acme", []string{"widgets"})
	s.ErrorIs(err, ErrRepoNotAllowed)

	repo, err := Repo("widgets", []string{"widgets"})
	s.Require().NoError(err)
	s.Equal("widgets", repo)
}

func (s *ValidateTestSuite) TestRepoAllowsAnythingWithEmptyAllowList() {
	repo, err := Repo("anything", nil)
	s.Require().NoError(err)
	s.Equal("anything", repo)
}

func TestValidateSuite(t *testing.T) {
	suite.Run(t, new(ValidateTestSuite))
}

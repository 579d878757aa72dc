package authz

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"pository/pkg/models"
)

type AuthzTestSuite struct {
	suite.Suite
}

func (s *AuthzTestSuite) TestDefaultRuleRequiresNameMatchesRepo() {
	policy := New([]string{"acme"}, false, nil)
	claims := &models.WorkloadClaims{Repository: "acme/widget", EventName: "push"}

	s.True(policy.Allow(claims, "widget"))
	s.False(policy.Allow(claims, "gadget"))
}

func (s *AuthzTestSuite) TestDefaultRuleRejectsUnknownOwner() {
	policy := New([]string{"acme"}, false, nil)
	claims := &models.WorkloadClaims{Repository: "intruder/widget", EventName: "push"}

	s.False(policy.Allow(claims, "widget"))
}

func (s *AuthzTestSuite) TestPullRequestEventsAlwaysDenied() {
	policy := New(nil, false, nil)
	claims := &models.WorkloadClaims{Repository: "acme/widget", EventName: "pull_request"}

	s.False(policy.Allow(claims, "widget"))
}

func (s *AuthzTestSuite) TestRequirePrivateRejectsPublicRepo() {
	policy := New(nil, true, nil)
	claims := &models.WorkloadClaims{Repository: "acme/widget", EventName: "push", RepositoryVisibility: "public"}

	s.False(policy.Allow(claims, "widget"))
}

func (s *AuthzTestSuite) TestOverrideMatchingPackageNameAllows() {
	policy := New([]string{"acme"}, false, map[string][]string{
		"partner/ci-tools": {"widget", "gadget"},
	})
	claims := &models.WorkloadClaims{Repository: "partner/ci-tools", EventName: "push"}

	s.True(policy.Allow(claims, "widget"))
	s.False(policy.Allow(claims, "thingy"))
}

func (s *AuthzTestSuite) TestOverrideWildcardAllowsAnyPackage() {
	policy := New(nil, false, map[string][]string{
		"partner/ci-tools": {"*"},
	})
	claims := &models.WorkloadClaims{Repository: "partner/ci-tools", EventName: "push"}

	s.True(policy.Allow(claims, "anything"))
}

func (s *AuthzTestSuite) TestOverrideBypassesDefaultOwnerCheck() {
	policy := New([]string{"acme"}, false, map[string][]string{
		"intruder/tool": {"widget"},
	})
	claims := &models.WorkloadClaims{Repository: "intruder/tool", EventName: "push"}

	s.True(policy.Allow(claims, "widget"))
}

func (s *AuthzTestSuite) TestNilClaimsDenied() {
	policy := New(nil, false, nil)
	s.False(policy.Allow(nil, "widget"))
}

func TestAuthzSuite(t *testing.T) {
	suite.Run(t, new(AuthzTestSuite))
}

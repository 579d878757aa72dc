// Package authz is the authorization policy (C6): given a verified
// workload identity and the target package name, decide whether the
// upload may proceed.
package authz

import (
	"strings"

	"pository/pkg/models"
)

// wildcard is the override entry that allows any package name.
const wildcard = "*"

// Policy evaluates workload-identity claims against a default rule (owner
// allow-list plus an optional private-repo requirement, and the uploaded
// package name must equal the `<repo>` portion of the claim's source
// repository) and any per-source-repository overrides. Overrides are
// keyed by the workload's own repository (`<owner>/<repo>`, e.g.
// "acme/ci-tools"), not by the Pository-side repo the upload targets; each
// entry lists the package names that repository may push, or ["*"] for
// any.
type Policy struct {
	DefaultOwners  []string
	RequirePrivate bool
	Overrides      map[string][]string
}

// New creates a Policy. defaultOwners may be empty, meaning "no owner
// restriction" (any actor from any owner may push, subject to the other
// checks still applying).
func New(defaultOwners []string, requirePrivate bool, overrides map[string][]string) *Policy {
	if overrides == nil {
		overrides = map[string][]string{}
	}
	return &Policy{DefaultOwners: defaultOwners, RequirePrivate: requirePrivate, Overrides: overrides}
}

// Allow reports whether claims authorizes an upload of packageName.
// pull_request-triggered workflows are always denied: a PR from a fork can
// carry a token scoped to the base repo without the base repo's
// maintainers having reviewed anything yet.
func (p *Policy) Allow(claims *models.WorkloadClaims, packageName string) bool {
	if claims == nil {
		return false
	}
	if strings.EqualFold(claims.EventName, "pull_request") {
		return false
	}

	if allowed, ok := p.Overrides[claims.Repository]; ok {
		return containsFold(allowed, wildcard) || containsFold(allowed, packageName)
	}

	if p.RequirePrivate && !strings.EqualFold(claims.RepositoryVisibility, "private") {
		return false
	}
	owner := ownerOf(claims.Repository)
	if len(p.DefaultOwners) > 0 && !containsFold(p.DefaultOwners, owner) {
		return false
	}
	return strings.EqualFold(repoName(claims.Repository), packageName)
}

func ownerOf(repository string) string {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func repoName(repository string) string {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 {
		return repository
	}
	return parts[1]
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

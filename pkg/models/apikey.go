package models

import "time"

// Role is the API key privilege level. Roles form a total order:
// RoleAdmin > RoleWrite > RoleRead.
type Role string

const (
	RoleRead  Role = "read"
	RoleWrite Role = "write"
	RoleAdmin Role = "admin"
)

// roleRank backs the role hierarchy comparison used by hasPermission.
var roleRank = map[Role]int{
	RoleRead:  1,
	RoleWrite: 2,
	RoleAdmin: 3,
}

// Satisfies reports whether a key with role r may perform an operation
// that requires the role "required".
func (r Role) Satisfies(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// KeyScope narrows a key to a subset of repos and/or distributions. A nil
// or empty set means "no restriction on that axis".
type KeyScope struct {
	Repos         []string `json:"repos,omitempty"`
	Distributions []string `json:"distributions,omitempty"`
}

// ApiKey is the persisted record for an issued API key. SecretHash never
// leaves the key store; the plaintext secret is returned exactly once, at
// creation time.
type ApiKey struct {
	ID          string    `json:"id"`
	SecretHash  string    `json:"secretHash"`
	Role        Role      `json:"role"`
	Scope       *KeyScope `json:"scope,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsed    time.Time `json:"lastUsed,omitempty"`
}

// Public is the representation returned by listKeys: never the hash.
type ApiKeyPublic struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Scope       *KeyScope `json:"scope,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsed    time.Time `json:"lastUsed,omitempty"`
}

// Public strips the secret hash for API responses.
func (k ApiKey) Public() ApiKeyPublic {
	return ApiKeyPublic{
		ID:          k.ID,
		Role:        k.Role,
		Scope:       k.Scope,
		Description: k.Description,
		CreatedAt:   k.CreatedAt,
		LastUsed:    k.LastUsed,
	}
}

// AllowsRepo reports whether the key's scope (if any) permits repo.
func (k ApiKey) AllowsRepo(repo string) bool {
	if k.Scope == nil || len(k.Scope.Repos) == 0 {
		return true
	}
	for _, r := range k.Scope.Repos {
		if r == repo {
			return true
		}
	}
	return false
}

// AllowsDistribution reports whether the key's scope (if any) permits dist.
func (k ApiKey) AllowsDistribution(dist string) bool {
	if k.Scope == nil || len(k.Scope.Distributions) == 0 {
		return true
	}
	for _, d := range k.Scope.Distributions {
		if d == dist {
			return true
		}
	}
	return false
}

// KeyFile is the on-disk shape of apiKeysPath: { "keys": [ApiKey...] }.
type KeyFile struct {
	Keys []ApiKey `json:"keys"`
}

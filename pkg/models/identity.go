package models

// WorkloadClaims is the subset of a verified workload-identity JWT's claims
// that the authorization policy (C6) needs to act on.
type WorkloadClaims struct {
	Repository           string `json:"repository"`
	RepositoryVisibility string `json:"repository_visibility"`
	EventName            string `json:"event_name"`
	Ref                  string `json:"ref"`
	Actor                string `json:"actor"`
	SHA                  string `json:"sha"`
	Workflow             string `json:"workflow"`
}

// StorageStats summarizes the content of the data tree for health/metrics
// reporting.
type StorageStats struct {
	TotalSize    int64 `json:"totalSize"`
	PackageCount int   `json:"packageCount"`
}

package models

// PackageLocation is the primary key of every stored artifact: a repo, the
// apt distribution/component/architecture it is published under, and the
// package's own name and version.
type PackageLocation struct {
	Repo         string `json:"repo"`
	Distribution string `json:"distribution"`
	Component    string `json:"component"`
	Architecture string `json:"architecture"`
	Name         string `json:"name"`
	Version      string `json:"version"`
}

// Filename is the conventional pool filename for this location:
// <name>_<version>_<architecture>.deb
func (l PackageLocation) Filename() string {
	return l.Name + "_" + l.Version + "_" + l.Architecture + ".deb"
}

package models

import "time"

// PackageMetadata is the immutable record created at upload time. The six
// PackageLocation fields plus Size/SHA256/Mime/UploadedAt/UploaderKeyID are
// always present; everything else is whatever the uploaded .deb's control
// file declared, and is omitted entirely when the control file didn't
// declare it.
type PackageMetadata struct {
	Repo         string `json:"repo"`
	Distribution string `json:"distribution"`
	Component    string `json:"component"`
	Architecture string `json:"architecture"`
	Name         string `json:"name"`
	Version      string `json:"version"`

	Size          int64     `json:"size"`
	SHA256        string    `json:"sha256"`
	MD5           string    `json:"md5,omitempty"`
	Mime          string    `json:"mime"`
	UploadedAt    time.Time `json:"uploadedAt"`
	UploaderKeyID string    `json:"uploaderKeyId"`

	Description   string `json:"description,omitempty"`
	MultiArch     string `json:"multiArch,omitempty"`
	Maintainer    string `json:"maintainer,omitempty"`
	Depends       string `json:"depends,omitempty"`
	PreDepends    string `json:"preDepends,omitempty"`
	Suggests      string `json:"suggests,omitempty"`
	Conflicts     string `json:"conflicts,omitempty"`
	Breaks        string `json:"breaks,omitempty"`
	Replaces      string `json:"replaces,omitempty"`
	Provides      string `json:"provides,omitempty"`
	Homepage      string `json:"homepage,omitempty"`
	Section       string `json:"section,omitempty"`
	Priority      string `json:"priority,omitempty"`
	InstalledSize string `json:"installedSize,omitempty"`
}

// Location extracts the six-tuple primary key from the metadata.
func (m PackageMetadata) Location() PackageLocation {
	return PackageLocation{
		Repo:         m.Repo,
		Distribution: m.Distribution,
		Component:    m.Component,
		Architecture: m.Architecture,
		Name:         m.Name,
		Version:      m.Version,
	}
}

// DebianMime is the fixed Content-Type recorded for every stored artifact.
const DebianMime = "application/vnd.debian.binary-package"

// PackageIndex is the ordered, per-repo list of package metadata persisted
// to <repo>/index.json.
type PackageIndex struct {
	Packages []PackageMetadata `json:"packages"`
}

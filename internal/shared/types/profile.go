package types

import "fmt"

// ProfileType discriminates where a profile's configuration comes from
type ProfileType string

const (
	ProfileTypePlatform ProfileType = "platform"
	ProfileTypeLocal    ProfileType = "local"
)

// FullSlug holds the identity coordinates of a published profile
type FullSlug struct {
	OwnerSlug   string `json:"ownerSlug"`
	PackageSlug string `json:"packageSlug"`
	VersionSlug string `json:"versionSlug"`
}

// ProfileDescription is identity and display metadata for a profile.
// Errors is a snapshot taken at construction and is not kept in sync with
// later refreshes.
type ProfileDescription struct {
	ID          string        `json:"id"`
	ProfileType ProfileType   `json:"profileType"`
	FullSlug    FullSlug      `json:"fullSlug"`
	Title       string        `json:"title"`
	Errors      []ConfigError `json:"errors,omitempty"`
}

// PlatformConfigMetadata identifies the package being loaded from the
// control plane. A nil value means the config is not platform-sourced.
type PlatformConfigMetadata struct {
	OwnerSlug   string `json:"ownerSlug"`
	PackageSlug string `json:"packageSlug"`
}

// NewPlatformDescription builds the description of a platform profile
func NewPlatformDescription(owner, pkg, version string, errs []ConfigError) ProfileDescription {
	return ProfileDescription{
		ID:          fmt.Sprintf("%s/%s", owner, pkg),
		ProfileType: ProfileTypePlatform,
		FullSlug: FullSlug{
			OwnerSlug:   owner,
			PackageSlug: pkg,
			VersionSlug: version,
		},
		Title:  fmt.Sprintf("%s/%s@%s", owner, pkg, version),
		Errors: CloneErrors(errs),
	}
}

// Assistant is a control-plane record pairing a profile identity with its
// current raw configuration. VersionSlug may be empty when the control plane
// does not report it.
type Assistant struct {
	OwnerSlug    string                        `json:"ownerSlug"`
	PackageSlug  string                        `json:"packageSlug"`
	VersionSlug  string                        `json:"versionSlug,omitempty"`
	IconURL      string                        `json:"iconUrl,omitempty"`
	ConfigResult *ConfigResult[ConfigDocument] `json:"configResult,omitempty"`
}

// Matches reports whether the assistant has the given owner and package
func (a Assistant) Matches(owner, pkg string) bool {
	return a.OwnerSlug == owner && a.PackageSlug == pkg
}

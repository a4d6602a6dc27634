// Package security defines sandbox isolation profiles.
package security

// IsolationProfile describes namespace and seccomp settings.
type IsolationProfile struct {
	RootFS         string `json:"rootfs,omitempty"`
	SeccompProfile string `json:"seccomp_profile,omitempty"`
	DisableNetwork bool   `json:"disable_network"`
	Hostname       string `json:"hostname,omitempty"`
}

package models

import (
	"fmt"
	"strings"
)

// Provider identifies an external data source the backend can import from.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderHubSpot Provider = "hubspot"
)

// Providers returns all known providers in display order. Gmail comes first;
// overlay attribution relies on this ordering when several syncs overlap.
func Providers() []Provider {
	return []Provider{ProviderGmail, ProviderHubSpot}
}

// ParseProvider resolves a user-supplied provider name.
func ParseProvider(raw string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gmail", "google":
		return ProviderGmail, nil
	case "hubspot":
		return ProviderHubSpot, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
	}
}

// DisplayName returns the provider name for user-facing output.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGmail:
		return "Gmail"
	case ProviderHubSpot:
		return "HubSpot"
	default:
		return string(p)
	}
}

// SyncMode selects how much history a sync imports.
type SyncMode string

const (
	// SyncModeRecent imports roughly the last month of data.
	SyncModeRecent SyncMode = "recent"

	// SyncModeFull imports everything the provider holds.
	SyncModeFull SyncMode = "full"
)

// WireValue returns the mode string the backend expects.
func (m SyncMode) WireValue() string {
	if m == SyncModeFull {
		return "all"
	}
	return "month"
}

// ParseSyncMode resolves a user-supplied mode name. Both the local and the
// wire spellings are accepted.
func ParseSyncMode(raw string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "recent", "month", "":
		return SyncModeRecent, nil
	case "full", "all":
		return SyncModeFull, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSyncMode, raw)
	}
}

// IntegrationStatus is the backend's report on both provider integrations.
type IntegrationStatus struct {
	// Google describes the Gmail integration.
	Google GoogleStatus `json:"google"`

	// HubSpot describes the HubSpot integration.
	HubSpot HubSpotStatus `json:"hubspot"`
}

// GoogleStatus describes the Gmail integration for the current user.
type GoogleStatus struct {
	// Connected indicates a linked Google account.
	Connected bool `json:"connected"`

	// Email is the linked Google address.
	Email string `json:"email,omitempty"`

	// EmailCount is how many emails have been imported so far.
	EmailCount int `json:"email_count"`

	// Syncing indicates an import job currently running.
	Syncing bool `json:"syncing"`
}

// HubSpotStatus describes the HubSpot integration for the current user.
type HubSpotStatus struct {
	// Connected indicates a linked HubSpot portal.
	Connected bool `json:"connected"`

	// Name is the linked portal's display name.
	Name string `json:"name,omitempty"`

	// ContactCount is how many contacts have been imported so far.
	ContactCount int `json:"contact_count"`

	// Syncing indicates an import job currently running.
	Syncing bool `json:"syncing"`
}

// Syncing reports whether the given provider has a running import.
func (s IntegrationStatus) Syncing(provider Provider) bool {
	switch provider {
	case ProviderGmail:
		return s.Google.Syncing
	case ProviderHubSpot:
		return s.HubSpot.Syncing
	default:
		return false
	}
}

// Connected reports whether the given provider is linked.
func (s IntegrationStatus) Connected(provider Provider) bool {
	switch provider {
	case ProviderGmail:
		return s.Google.Connected
	case ProviderHubSpot:
		return s.HubSpot.Connected
	default:
		return false
	}
}

// AnySyncing reports whether any provider has a running import.
func (s IntegrationStatus) AnySyncing() bool {
	return s.Google.Syncing || s.HubSpot.Syncing
}

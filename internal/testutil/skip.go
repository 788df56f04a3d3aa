// Package testutil has shared helpers for tests.
package testutil

import (
	"os"
	"testing"
)

// SkipIfNoNetwork skips the test if ADVISOR_TEST_SKIP_NETWORK is set.
// Use this for tests that bind local TCP listeners, which some sandboxed
// environments forbid.
func SkipIfNoNetwork(t *testing.T) {
	t.Helper()
	if os.Getenv("ADVISOR_TEST_SKIP_NETWORK") != "" {
		t.Skip("skipping network test: ADVISOR_TEST_SKIP_NETWORK is set")
	}
}

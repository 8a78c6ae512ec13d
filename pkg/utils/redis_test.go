package utils

import "testing"

func TestClaimScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if claimOnceScript == nil || unclaimScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

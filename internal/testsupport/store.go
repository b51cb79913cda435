package testsupport

import (
	"testing"

	"virtucast/internal/config"
	"virtucast/internal/runlog"
)

// MustOpenStore opens a run ledger for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()

	store, err := runlog.Open(cfg)
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

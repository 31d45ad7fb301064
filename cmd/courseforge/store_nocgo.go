//go:build !cgo

package main

import (
	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/runstore"
)

// openStateStore falls back to the in-memory store when the KuzuDB driver is
// unavailable. Run state does not survive the process in this mode, so
// resume and regen only work within one invocation.
func openStateStore(string) (orchestrator.StateStore, func() error, error) {
	return runstore.NewMemStore(), nil, nil
}

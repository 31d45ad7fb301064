//go:build cgo

package main

import (
	"context"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
	"github.com/dusk-indust/courseforge/internal/runstore"
)

// openStateStore opens the file-backed KuzuDB run store so runs survive
// across invocations.
func openStateStore(path string) (orchestrator.StateStore, func() error, error) {
	store, err := runstore.NewKuzuFileStore(path)
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(context.Background()); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, store.Close, nil
}

package runstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/courseforge/internal/orchestrator"
)

// Compile-time assertion: *DirBlobStore satisfies BlobStore.
var _ orchestrator.BlobStore = (*DirBlobStore)(nil)

// DirBlobStore stores rendered image bytes as files under a root directory,
// one file per storage key. Keys use forward slashes and map directly onto
// the directory layout.
type DirBlobStore struct {
	root string
}

// NewDirBlobStore creates a blob store rooted at dir.
func NewDirBlobStore(dir string) *DirBlobStore {
	return &DirBlobStore{root: dir}
}

// Put writes data under key, creating intermediate directories as needed.
// Keys that escape the root are rejected.
func (b *DirBlobStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("blobstore: key %q escapes root", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blobstore: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: write %s: %w", key, err)
	}
	return nil
}

package runstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirBlobStore_PutCreatesNestedFile(t *testing.T) {
	root := t.TempDir()
	store := NewDirBlobStore(root)

	key := "runs/run-1/images/0001.png"
	data := []byte{0x89, 0x50, 0x4e, 0x47}
	require.NoError(t, store.Put(context.Background(), key, data))

	got, err := os.ReadFile(filepath.Join(root, "runs", "run-1", "images", "0001.png"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDirBlobStore_PutOverwrites(t *testing.T) {
	store := NewDirBlobStore(t.TempDir())

	key := "runs/run-1/images/0001.png"
	require.NoError(t, store.Put(context.Background(), key, []byte("v1")))
	require.NoError(t, store.Put(context.Background(), key, []byte("v2")))
}

func TestDirBlobStore_RejectsEscapingKey(t *testing.T) {
	store := NewDirBlobStore(t.TempDir())

	err := store.Put(context.Background(), "../outside.png", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes root")
}

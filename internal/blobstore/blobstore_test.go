package blobstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorreltree/datalocker/internal/blobstore"
	"github.com/sorreltree/datalocker/internal/layout"
)

func TestDigestPathSafe(t *testing.T) {
	t.Parallel()

	d := blobstore.Digest([]byte("hello world"))
	assert.Len(t, d, 43)
	assert.NotContains(t, d, "+")
	assert.NotContains(t, d, "/")
	assert.NotContains(t, d, "=")
	assert.Equal(t, d, blobstore.Digest([]byte("hello world")))
	assert.NotEqual(t, d, blobstore.Digest([]byte("hello worlds")))
}

func TestPutContentAddressing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := blobstore.New(layout.New(root))

	p1, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	p2, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	p3, err := store.Put([]byte("different bytes"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p3)

	got, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, []byte("same bytes"), got)
}

func TestPutIdempotentNoDuplicates(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := blobstore.New(layout.New(root))

	for i := 0; i < 3; i++ {
		_, err := store.Put([]byte("repeat"))
		require.NoError(t, err)
	}

	var files int
	err := filepath.Walk(filepath.Join(root, ".store"), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files++
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, files)
}

func TestPutShardsByDigest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := blobstore.New(layout.New(root))

	p, err := store.Put([]byte("shard me"))
	require.NoError(t, err)

	rel, err := filepath.Rel(filepath.Join(root, ".store"), p)
	require.NoError(t, err)
	parts := strings.Split(rel, string(filepath.Separator))
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 2)
	assert.Len(t, parts[1], 2)
	assert.Equal(t, blobstore.Digest([]byte("shard me")), parts[0]+parts[1]+parts[2])
}

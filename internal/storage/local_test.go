package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "imagery")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := "planetscope analytic/4/rio_grande/2024_03_14_abc123.tiff"

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Write(ctx, key, []byte("tiff bytes")))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.ReadAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("tiff bytes"), data)
}

func TestLocalStoreWriteReplaces(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "a/b.json", []byte("v1")))
	require.NoError(t, store.Write(ctx, "a/b.json", []byte("v2")))

	data, err := store.ReadAll(ctx, "a/b.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestLocalStoreURI(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "pfx")
	require.NoError(t, err)

	uri := store.URI("x/y.tiff")
	assert.Contains(t, uri, "file://")
	assert.Contains(t, uri, "pfx/x/y.tiff")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Backend: "local"})
	assert.Error(t, err)
	_, err = New(Config{Backend: "gcs"})
	assert.Error(t, err)
	_, err = New(Config{Backend: "ftp"})
	assert.Error(t, err)
}

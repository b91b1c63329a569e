package fileblob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/objectstore"
)

func TestStorePutIsContentAddressedAndIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New(objectstore.NewMemoryStore())

	data := []byte("fake image bytes")
	hash1, marker1, err := store.Put(ctx, "image/png", data)
	require.NoError(t, err)
	hash2, marker2, err := store.Put(ctx, "image/png", data)
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2)
	assert.Equal(t, marker1, marker2)
	assert.Equal(t, 2, store.RefCount(hash1))
}

func TestStoreGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := New(objectstore.NewMemoryStore())

	data := []byte("round trip me")
	hash, _, err := store.Put(ctx, "text/plain", data)
	require.NoError(t, err)

	got, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStoreGetMissingHash(t *testing.T) {
	store := New(objectstore.NewMemoryStore())
	_, err := store.Get(context.Background(), "0000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSweepOnlyRemovesUnreferenced(t *testing.T) {
	ctx := context.Background()
	store := New(objectstore.NewMemoryStore())

	kept, _, err := store.Put(ctx, "text/plain", []byte("kept"))
	require.NoError(t, err)
	dropped, _, err := store.Put(ctx, "text/plain", []byte("dropped"))
	require.NoError(t, err)

	store.Release(dropped)

	n, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, dropped)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, kept)
	assert.NoError(t, err)
}

func TestParseInlineMarker(t *testing.T) {
	mime, hash, ok := ParseInlineMarker("#!B64!#[image/png]::abc123")
	require.True(t, ok)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "abc123", hash)

	_, _, ok = ParseInlineMarker("not a marker")
	assert.False(t, ok)
}

func TestInlineMarkerRoundTripsThroughPut(t *testing.T) {
	ctx := context.Background()
	store := New(objectstore.NewMemoryStore())
	hash, marker, err := store.Put(ctx, "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	mime, parsedHash, ok := ParseInlineMarker(marker)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, hash, parsedHash)
}

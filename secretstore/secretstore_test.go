package secretstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Every backend must satisfy the same load/save/delete contract.
func runStoreContract(t *testing.T, store interfaces.SecretStore) {
	t.Helper()
	ctx := context.Background()
	id := interfaces.SecretID("tls-private-key")

	_, err := store.Load(ctx, id)
	require.ErrorIs(t, err, interfaces.ErrSecretNotFound)

	payload := []byte{0x30, 0x82, 0x01, 0x00}
	require.NoError(t, store.Save(ctx, id, payload))

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, loaded)

	// Overwrite replaces the previous entry.
	require.NoError(t, store.Save(ctx, id, []byte("v2")))
	loaded, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), loaded)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Load(ctx, id)
	require.ErrorIs(t, err, interfaces.ErrSecretNotFound)

	// Delete is idempotent.
	require.NoError(t, store.Delete(ctx, id))
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestBoltStoreContract(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "secrets.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []interfaces.SecretID{"../escape", "a/b", "a\\b", ""} {
		err := store.Save(ctx, id, []byte("x"))
		assert.ErrorIs(t, err, interfaces.ErrStoreUnavailable, "id=%q", id)
	}
}

func TestStoreForSchemes(t *testing.T) {
	dir := t.TempDir()

	store, err := StoreFor("file://"+dir, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = StoreFor("bolt://"+filepath.Join(dir, "s.db"), testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BoltStore{}, store)
	store.(*BoltStore).Close()

	_, err = StoreFor("s3://bucket/whatever", testLogger())
	require.Error(t, err)

	_, err = StoreFor("vault://localhost:8200/nopath", testLogger())
	require.Error(t, err)
}

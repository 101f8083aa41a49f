// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sharelock.
//
// go-sharelock is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package badger

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *Storage {
	t.Helper()
	store, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestPutGetDelete(t *testing.T) {
	store := openInMemory(t)
	var _ storage.Backend = store

	key := storage.SchemePath("s1")
	require.NoError(t, store.Put(key, []byte(`{"k":2,"n":3}`), nil))

	got, err := store.Get(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":2,"n":3}`, string(got))

	exists, err := store.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(key))
	_, err = store.Get(key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(key), storage.ErrNotFound)

	exists, err = store.Exists(key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEmptyValueAndKey(t *testing.T) {
	store := openInMemory(t)
	require.NoError(t, store.Put("empty", nil, nil))

	got, err := store.Get("empty")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.ErrorIs(t, store.Put("", []byte("x"), nil), storage.ErrInvalidKey)
}

func TestCreate(t *testing.T) {
	store := openInMemory(t)
	key := storage.AssetPath("report.pdf")

	require.NoError(t, store.Create(key, []byte("first"), nil))
	assert.ErrorIs(t, store.Create(key, []byte("second"), nil), storage.ErrAlreadyExists)

	got, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	require.NoError(t, store.Delete(key))
	require.NoError(t, store.Create(key, []byte("again"), nil))
	assert.ErrorIs(t, store.Create("", nil, nil), storage.ErrInvalidKey)
}

func TestCreate_Concurrent(t *testing.T) {
	store := openInMemory(t)
	key := storage.AssetPath("contended")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(key, []byte("x"), nil)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, storage.ErrAlreadyExists)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestList(t *testing.T) {
	store := openInMemory(t)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Put(storage.SchemePath(id), []byte("{}"), nil))
	}
	require.NoError(t, store.Put(storage.AssetPath("doc"), []byte("{}"), nil))

	keys, err := store.List("schemes/")
	require.NoError(t, err)
	assert.Equal(t, []string{"schemes/a.json", "schemes/b.json", "schemes/c.json"}, keys)

	ids, err := storage.ListSchemes(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	all, err := store.List("")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Config{Dir: dir, SyncWrites: true, Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	require.NoError(t, store.Put(storage.AssetPath("doc"), []byte("linked"), nil))
	require.NoError(t, store.Close())

	reopened, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(storage.AssetPath("doc"))
	require.NoError(t, err)
	assert.Equal(t, "linked", string(got))
}

func TestClose(t *testing.T) {
	store, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Get("k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, store.Put("k", []byte("v"), nil), storage.ErrClosed)
	assert.ErrorIs(t, store.Create("k", []byte("v"), nil), storage.ErrClosed)
	_, err = store.List("")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

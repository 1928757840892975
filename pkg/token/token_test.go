package token

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", Default},
		{"cl100k", "cl100k"},
		{"CL100K_BASE", "cl100k"},
		{"gpt2", "r50k_base"},
		{"o200k_base", "o200k_base"},
		{"simple", Simple},
	}
	for _, tt := range tests {
		got, err := Canonical(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := Canonical("llama3")
	assert.True(t, errors.Is(err, ErrTokenizerUnsupported))
	_, err = New("llama3")
	assert.ErrorIs(t, err, ErrTokenizerUnsupported)
}

func TestNextCycles(t *testing.T) {
	assert.Equal(t, "p50k_base", Next("cl100k", 1))
	assert.Equal(t, "o200k_base", Next("simple", 1))
	assert.Equal(t, "simple", Next("o200k_base", -1))
	assert.Equal(t, "o200k_base", Next("bogus", 1))
}

func TestSimpleTokenizer(t *testing.T) {
	tok, err := New(Simple)
	require.NoError(t, err)
	assert.Equal(t, 0, tok.Count(nil))
	assert.Equal(t, 1, tok.Count([]byte("abc")))
	assert.Equal(t, 3, tok.Count([]byte("0123456789")))
}

func TestCounterMemoizes(t *testing.T) {
	tok, err := New(Simple)
	require.NoError(t, err)
	c := NewCounter(tok, nil, nil)

	loads := 0
	load := func() ([]byte, error) {
		loads++
		return []byte("12345678"), nil
	}
	ctx := context.Background()

	n, err := c.CountFile(ctx, "a.go", 10, 8, load)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = c.CountFile(ctx, "a.go", 10, 8, load)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, loads)

	// A new modification time invalidates the memo.
	_, err = c.CountFile(ctx, "a.go", 11, 8, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, Stats{MemoHits: 1, Computed: 2}, c.Stats())
}

func TestCounterPropagatesLoadError(t *testing.T) {
	tok, _ := New(Simple)
	c := NewCounter(tok, nil, nil)
	boom := errors.New("boom")
	_, err := c.CountFile(context.Background(), "x", 1, 1, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCounterCancelled(t *testing.T) {
	tok, _ := New(Simple)
	c := NewCounter(tok, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.CountFile(ctx, "x", 1, 1, func() ([]byte, error) {
		t.Fatal("load must not run after cancel")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteStoreSurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tokens.db")
	ctx := context.Background()
	tok, _ := New(Simple)

	store, err := OpenStore(dbPath)
	require.NoError(t, err)
	c := NewCounter(tok, store, nil)
	_, err = c.CountFile(ctx, "/p/a.go", 5, 4, func() ([]byte, error) { return []byte("abcd"), nil })
	require.NoError(t, err)
	require.NoError(t, c.Close())

	store, err = OpenStore(dbPath)
	require.NoError(t, err)
	defer store.Close()
	c = NewCounter(tok, store, nil)
	n, err := c.CountFile(ctx, "/p/a.go", 5, 4, func() ([]byte, error) {
		t.Fatal("count must come from the store")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), c.Stats().StoreHits)

	_, ok, err := store.Get(ctx, Key{Path: "/p/a.go", ModTime: 6, Size: 4, Tokenizer: Simple})
	require.NoError(t, err)
	assert.False(t, ok, "stale mtime is a miss")
}

func TestSQLiteStoreUpsert(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	key := Key{Path: "a", ModTime: 1, Size: 1, Tokenizer: "cl100k"}
	require.NoError(t, store.Put(ctx, key, 10))
	key.ModTime = 2
	require.NoError(t, store.Put(ctx, key, 20))

	n, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, n)
}

func TestSQLiteStorePrune(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	key := Key{Path: "a", ModTime: 1, Size: 1, Tokenizer: Simple}
	require.NoError(t, store.Put(ctx, key, 3))

	n, err := store.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "fresh rows stay")

	n, err = store.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockedRecognizesBusyErrors(t *testing.T) {
	assert.True(t, locked(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, locked(fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked})))
	assert.False(t, locked(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, locked(errors.New("database is locked")))
}

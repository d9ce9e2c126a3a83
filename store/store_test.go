package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/folio"
)

var bought = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

// stores returns one fresh instance of each implementation.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	file, err := NewFile(t.TempDir())
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		file.Close()
		db.Close()
	})
	return map[string]Store{"file": file, "sqlite": db}
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			h, err := s.Add(ctx, "alice", folio.Holding{Type: folio.Stock, AssetKey: "aapl.us", Quantity: folio.Q(2), Purchased: bought, PurchasePrice: 180})
			require.NoError(t, err)
			assert.NotEmpty(t, h.ID)
			assert.Equal(t, "AAPL.US", h.AssetKey)

			_, err = s.Add(ctx, "alice", folio.Holding{Type: folio.Crypto, AssetKey: "bitcoin", Quantity: folio.Q(0.1), Purchased: bought})
			require.NoError(t, err)

			list, err := s.List(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "AAPL.US", list[0].AssetKey, "insertion order")
			assert.True(t, list[0].Quantity.Equal(folio.Q(2)))
			assert.True(t, list[0].Purchased.Equal(bought))
			assert.Equal(t, 180.0, list[0].PurchasePrice)

			other, err := s.List(ctx, "bob")
			require.NoError(t, err)
			assert.Empty(t, other, "users are isolated")

			h.Note = "long term"
			require.NoError(t, s.Update(ctx, "alice", h))
			got, err := s.Get(ctx, "alice", h.ID)
			require.NoError(t, err)
			assert.Equal(t, "long term", got.Note)

			require.NoError(t, s.Delete(ctx, "alice", h.ID))
			_, err = s.Get(ctx, "alice", h.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "alice", h.ID), ErrNotFound)
			assert.ErrorIs(t, s.Update(ctx, "alice", h), ErrNotFound)
		})
	}
}

func TestAddValidates(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Add(ctx, "alice", folio.Holding{Type: folio.Crypto, Quantity: folio.Q(1), Purchased: bought})
			assert.ErrorIs(t, err, folio.ErrInvalidHolding)

			_, err = s.Add(ctx, "../etc", folio.Holding{Type: folio.Stock, AssetKey: "AAA", Quantity: folio.Q(1), Purchased: bought})
			assert.ErrorIs(t, err, ErrInvalidUser)

			list, err := s.List(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestReduce(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			h, err := s.Add(ctx, "alice", folio.Holding{Type: folio.Crypto, AssetKey: "bitcoin", Quantity: folio.Q(1), Purchased: bought})
			require.NoError(t, err)

			left, deleted, err := s.Reduce(ctx, "alice", h.ID, folio.Q(0.25))
			require.NoError(t, err)
			assert.False(t, deleted)
			assert.True(t, left.Quantity.Equal(folio.Q(0.75)))

			_, _, err = s.Reduce(ctx, "alice", h.ID, folio.Q(2))
			assert.ErrorIs(t, err, folio.ErrOversell)

			_, deleted, err = s.Reduce(ctx, "alice", h.ID, folio.Q(0.749999999))
			require.NoError(t, err)
			assert.True(t, deleted, "dust remainder deletes the holding")

			list, err := s.List(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, list)

			_, _, err = s.Reduce(ctx, "alice", h.ID, folio.Q(1))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			changes, stop := s.Watch("alice")
			defer stop()

			_, err := s.Add(ctx, "alice", folio.Holding{Type: folio.Stock, AssetKey: "AAA", Quantity: folio.Q(1), Purchased: bought})
			require.NoError(t, err)
			_, err = s.Add(ctx, "alice", folio.Holding{Type: folio.Stock, AssetKey: "BBB", Quantity: folio.Q(1), Purchased: bought})
			require.NoError(t, err)
			_, err = s.Add(ctx, "bob", folio.Holding{Type: folio.Stock, AssetKey: "CCC", Quantity: folio.Q(1), Purchased: bought})
			require.NoError(t, err)

			select {
			case got := <-changes:
				assert.Len(t, got, 2, "only the latest list is kept")
			case <-time.After(time.Second):
				t.Fatal("no change notified")
			}
			select {
			case got := <-changes:
				t.Fatalf("unexpected notification %v", got)
			default:
			}

			stop()
			_, ok := <-changes
			assert.False(t, ok, "stop closes the channel")
		})
	}
}

func TestFileKeepsLegacyRecords(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"id":"1","type":"crypto","quantity":"3","purchased":"2024-01-10T00:00:00Z"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.jsonl"), []byte(legacy), 0o644))

	s, err := NewFile(dir)
	require.NoError(t, err)
	list, err := s.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Resolvable(), "a holding without key is listed, not rejected")
}

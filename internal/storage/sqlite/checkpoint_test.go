package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"secevents/internal/domain"
	"secevents/internal/storage/storagetest"
)

func TestSQLiteCheckpointStore_Memory(t *testing.T) {
	suite.Run(t, &storagetest.CheckpointStoreSuite{
		NewStore: func() storagetest.Store {
			store, err := Open(context.Background(), ":memory:")
			require.NoError(t, err)
			return store
		},
	})
}

func TestSQLiteCheckpointStore_File(t *testing.T) {
	suite.Run(t, &storagetest.CheckpointStoreSuite{
		NewStore: func() storagetest.Store {
			store, err := Open(context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"))
			require.NoError(t, err)
			return store
		},
	})
}

func TestSQLiteCheckpointStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	wm, err := domain.TimestampFromString("105")
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, &domain.Checkpoint{Name: "c", Watermark: &wm, Boundary: []domain.Fingerprint{"fp"}}))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	cp, err := reopened.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, cp.Watermark.Equal(wm))
	require.Equal(t, []domain.Fingerprint{"fp"}, cp.Boundary)
}

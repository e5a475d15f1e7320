package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"secevents/internal/domain"
	"secevents/internal/storage/storagetest"
)

func TestBlobCheckpointStore_Mem(t *testing.T) {
	suite.Run(t, &storagetest.CheckpointStoreSuite{
		NewStore: func() storagetest.Store {
			store, err := Open(context.Background(), "mem://")
			require.NoError(t, err)
			return store
		},
	})
}

func TestBlobCheckpointStore_File(t *testing.T) {
	suite.Run(t, &storagetest.CheckpointStoreSuite{
		NewStore: func() storagetest.Store {
			store, err := OpenDir(t.TempDir())
			require.NoError(t, err)
			return store
		},
	})
}

func TestBlobCheckpointStore_Ping(t *testing.T) {
	store, err := Open(context.Background(), "mem://")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
}

func TestBlobCheckpointStore_FileLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenDir(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, v := range []string{"1700000000", "1700000001.5"} {
		ts, err := domain.TimestampFromString(v)
		require.NoError(t, err)
		require.NoError(t, store.Commit(ctx, &domain.Checkpoint{
			Name:      "audit/logs",
			Watermark: &ts,
			Boundary:  []domain.Fingerprint{"aa"},
		}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files or attribute sidecars are left behind")
	assert.Equal(t, "audit%2Flogs.json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"watermark":1700000001.5`)

	require.NoError(t, store.Delete(ctx, "audit/logs"))
	require.NoError(t, store.Delete(ctx, "audit/logs"))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBlobCheckpointStore_FileIgnoresStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".audit.json.123.tmp"), nil, 0o600))

	store, err := OpenDir(dir)
	require.NoError(t, err)
	defer store.Close()

	cp, err := store.Get(context.Background(), "audit")
	require.NoError(t, err)
	assert.False(t, cp.Exists())
	require.NoError(t, store.Ping(context.Background()))
}

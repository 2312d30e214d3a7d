package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutstudio/backend/internal/shared/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(config.StorageConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	base := t.TempDir()
	_, err := NewService(config.StorageConfig{BasePath: base})
	require.NoError(t, err)

	for _, zone := range []Zone{ZoneUpload, ZoneWorking, ZoneOutput} {
		info, err := os.Stat(filepath.Join(base, string(zone)))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestStoreAndRetrieve(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	info, err := svc.Store(ctx, ZoneUpload, "clip.mp4", strings.NewReader("fake video bytes"))
	require.NoError(t, err)

	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "clip.mp4", info.Name)
	assert.Equal(t, ZoneUpload, info.Zone)
	assert.Equal(t, int64(len("fake video bytes")), info.Size)
	assert.Equal(t, ".mp4", filepath.Ext(info.Path))
	assert.True(t, info.ExpiresAt.After(info.CreatedAt))

	rc, err := svc.Retrieve(ctx, info.Path)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "fake video bytes", string(data))
}

func TestExistsAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	info, err := svc.Store(ctx, ZoneOutput, "out.mkv", strings.NewReader("x"))
	require.NoError(t, err)

	exists, err := svc.Exists(ctx, info.Path)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.Delete(ctx, info.Path))

	exists, err = svc.Exists(ctx, info.Path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWorkDir(t *testing.T) {
	svc := newTestService(t)

	dir, cleanup, err := svc.WorkDir("extract")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(dir), "extract-"))
	assert.Contains(t, dir, string(ZoneWorking))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.mp4"), []byte("x"), 0644))

	cleanup()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupZone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	old, err := svc.Store(ctx, ZoneWorking, "stale.mp4", strings.NewReader("old"))
	require.NoError(t, err)
	fresh, err := svc.Store(ctx, ZoneWorking, "fresh.mp4", strings.NewReader("new"))
	require.NoError(t, err)

	// Age the first file past the working-zone retention.
	stale := time.Now().Add(-5 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, stale, stale))

	removed, err := svc.CleanupZone(ctx, ZoneWorking)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	exists, _ := svc.Exists(ctx, old.Path)
	assert.False(t, exists)
	exists, _ = svc.Exists(ctx, fresh.Path)
	assert.True(t, exists)
}

func TestGetPath(t *testing.T) {
	base := t.TempDir()
	svc, err := NewService(config.StorageConfig{BasePath: base})
	require.NoError(t, err)

	got := svc.GetPath(ZoneOutput, "abc.mp4")
	assert.Equal(t, filepath.Join(base, "output", "abc.mp4"), got)
}

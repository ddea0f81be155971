package stores

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDriverStageStatOpen(t *testing.T) {
	ctx := context.Background()
	d, err := NewLocalDriver(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Stage(ctx, "a/b/zen.1.uvh5", strings.NewReader("payload")))

	info, err := d.Stat(ctx, "a/b/zen.1.uvh5")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(len("payload")), info.Size)

	rc, err := d.Open(ctx, "a/b/zen.1.uvh5")
	require.NoError(t, err)
	defer rc.Close()
}

func TestLocalDriverStatMissing(t *testing.T) {
	ctx := context.Background()
	d, err := NewLocalDriver(t.TempDir())
	require.NoError(t, err)

	info, err := d.Stat(ctx, "missing.uvh5")
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestLocalDriverRemoveMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	d, err := NewLocalDriver(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, d.Remove(ctx, "missing.uvh5"))
}

func TestRegistryUnknownStore(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	assert.Error(t, err)
}

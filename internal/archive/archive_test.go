package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
)

func TestLocalArchiverWritesDatedJSON(t *testing.T) {
	root := t.TempDir()
	a := &localArchiver{root: root, now: func() time.Time {
		return time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	}}

	summary := domain.SyncSummary{AudiencesCreated: 3, WindowsStored: 27}
	require.NoError(t, a.Save(context.Background(), KindSync, "acc-1", summary))

	path := filepath.Join(root, "sync", "2026", "01", "15", "acc-1-093000.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got domain.SyncSummary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.AudiencesCreated)
	assert.Equal(t, 27, got.WindowsStored)
}

func TestNewDisabledAndUnknown(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{})
	require.NoError(t, err)
	assert.NoError(t, a.Save(context.Background(), KindSync, "acc-1", struct{}{}))

	_, err = New(context.Background(), config.ArchiveConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestNewLocalDefaultsPath(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, a)
}

package upgradestate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	record, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, record)
}

// TestFileRepository_RecordRoundtrip saves a candidate, loads it back and clears it.
func TestFileRepository_RecordRoundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)
	checkedAt := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return checkedAt }

	candidate := &upgrade.ReleaseCandidate{
		Version: upgrade.MustParseVersion("2.1.0"),
		Ring:    upgrade.RingFast,
	}

	require.NoError(t, repo.Record(context.Background(), candidate))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, got.Version.Equal(candidate.Version))
	require.Equal(t, upgrade.RingFast, got.Ring)
	require.Equal(t, checkedAt, got.CheckedAt)

	require.NoError(t, repo.Record(context.Background(), nil))
	require.NoFileExists(t, file)

	// Clearing twice is fine.
	require.NoError(t, repo.Clear(context.Background()))
}

// TestFileRepository_Corrupted rejects unreadable documents.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := repo.Load(context.Background())
	require.Error(t, err)

	require.NoError(t, os.WriteFile(file, []byte(`{"version":"2.0.0","ring":"medium"}`), 0o600))

	_, err = repo.Load(context.Background())
	require.Error(t, err)
}

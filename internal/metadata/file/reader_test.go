package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/shotprogress/internal/metadata"
)

func TestReaderReadsRelativeHandle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSidecar(t, filepath.Join(dir, "seq_0001.yaml"), "n_runs: 5\nrun number: 3\n")

	runs, err := New(dir).ReadRuns(context.Background(), "seq_0001.yaml")
	require.NoError(t, err)
	require.Equal(t, metadata.Runs{Current: 3, Total: 5}, runs)
}

func TestReaderReadsAbsoluteHandle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shot.json")
	writeSidecar(t, path, `{"n_runs": 2, "run number": 0}`)

	runs, err := New("/does/not/matter").ReadRuns(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, metadata.Runs{Current: 0, Total: 2}, runs)
}

func TestReaderFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSidecar(t, filepath.Join(dir, "broken.yaml"), "n_runs: 0\nrun number: 0\n")
	reader := New(dir)

	_, err := reader.ReadRuns(context.Background(), "missing.yaml")
	require.ErrorIs(t, err, metadata.ErrUnavailable)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = reader.ReadRuns(context.Background(), "broken.yaml")
	require.ErrorIs(t, err, metadata.ErrUnavailable)

	_, err = reader.ReadRuns(context.Background(), "")
	require.ErrorIs(t, err, metadata.ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reader.ReadRuns(ctx, "broken.yaml")
	require.ErrorIs(t, err, context.Canceled)
}

func writeSidecar(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

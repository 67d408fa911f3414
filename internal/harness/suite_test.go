package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDir(t *testing.T) {
	result, err := RunDir(context.Background(), filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Passed, "failures: %v", result.Failures)
	assert.Zero(t, result.Failed)
}

func TestRunFilesFailures(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: [unterminated"), 0o644))

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(minimalScenario+`  - type: next_group_id
    count: 9
`), 0o644))

	missing := filepath.Join(dir, "missing.yaml")

	result, err := RunFiles(context.Background(), []string{broken, failing, missing})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Failures, 3)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "minimal", result.Failures[1].Name)
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
	assert.Contains(t, result.Failures[2].Error, "does not exist")
}

func TestRunFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunFiles(ctx, []string{"whatever.yaml"})
	assert.ErrorIs(t, err, context.Canceled)
}

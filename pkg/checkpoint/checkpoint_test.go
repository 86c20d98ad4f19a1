package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhulett18/threadsrecon/pkg/logger"
)

func TestMarkAndCheck(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, logger.GetLogger())
	require.NoError(t, err)

	assert.False(t, m.IsFetched("jdoe"))
	require.NoError(t, m.MarkFetched("jdoe"))
	assert.True(t, m.IsFetched("jdoe"))
	assert.Equal(t, 1, m.FetchedCount())
}

func TestStateSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, logger.GetLogger())
	require.NoError(t, err)
	require.NoError(t, m.MarkFetched("jdoe"))
	require.NoError(t, m.MarkFetched("other"))

	reloaded, err := NewManager(dir, logger.GetLogger())
	require.NoError(t, err)
	assert.True(t, reloaded.IsFetched("jdoe"))
	assert.True(t, reloaded.IsFetched("other"))
	assert.Equal(t, 2, reloaded.FetchedCount())
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, logger.GetLogger())
	require.NoError(t, err)
	require.NoError(t, m.MarkFetched("jdoe"))

	require.NoError(t, m.Reset())
	assert.False(t, m.IsFetched("jdoe"))

	reloaded, err := NewManager(dir, logger.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.FetchedCount())
}

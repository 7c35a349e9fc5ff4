package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	s := NewMemoryStore()

	stats, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	require.NoError(t, s.AddRecord(testRecord(1, "a")))
	require.NoError(t, s.AddRecord(testRecord(2, "b")))
	require.NoError(t, s.AddRecord(testRecord(1, "c")))
	require.NoError(t, s.SetRuntimeConfig(RuntimeConfig{}))

	stats, err = Collect(s)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
	require.NotNil(t, stats.LatestID)
	assert.Equal(t, testID(1), *stats.LatestID)
	assert.True(t, stats.RuntimeConfigSet)
}

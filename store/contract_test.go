package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testID returns a deterministic ID whose last byte is n.
func testID(n byte) ExecutionID {
	return ExecutionID{15: n}
}

func testRecord(n byte, command string) Record {
	return Record{ID: testID(n), Command: command, State: RecordStateSucceeded}
}

// runContractTests exercises the behaviour every Store backend must share.
func runContractTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("empty", func(t *testing.T) {
		s := newStore(t)

		_, ok, err := s.LatestID()
		require.NoError(t, err)
		assert.False(t, ok)

		records, err := s.Records()
		require.NoError(t, err)
		assert.Empty(t, records)

		_, ok, err = s.Record(testID(1))
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.RuntimeConfig()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("last write wins", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.AddRecord(testRecord(1, "a")))
		require.NoError(t, s.AddRecord(testRecord(2, "b")))
		require.NoError(t, s.AddRecord(testRecord(1, "c")))

		got, ok, err := s.Record(testID(1))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "c", got.Command)

		got, ok, err = s.Record(testID(2))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", got.Command)

		latest, ok, err := s.LatestID()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, testID(1), latest)

		records, err := s.Records()
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("latest follows call order not key order", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.AddRecord(testRecord(9, "x")))
		require.NoError(t, s.AddRecord(testRecord(3, "y")))

		latest, ok, err := s.LatestID()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, testID(3), latest)
	})

	t.Run("zero id is a valid key", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.AddRecord(Record{Command: "zero"}))

		got, ok, err := s.Record(ExecutionID{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "zero", got.Command)

		latest, ok, err := s.LatestID()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, latest.IsZero())
	})

	t.Run("runtime config replaced", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.SetRuntimeConfig(RuntimeConfig{Timeout: 30 * time.Second}))
		require.NoError(t, s.SetRuntimeConfig(RuntimeConfig{Timeout: 60 * time.Second}))

		cfg, ok, err := s.RuntimeConfig()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, RuntimeConfig{Timeout: 60 * time.Second}, cfg)
	})

	t.Run("config and records are independent", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.SetRuntimeConfig(RuntimeConfig{Shell: "/bin/bash"}))

		records, err := s.Records()
		require.NoError(t, err)
		assert.Empty(t, records)

		require.NoError(t, s.AddRecord(testRecord(1, "a")))

		cfg, ok, err := s.RuntimeConfig()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "/bin/bash", cfg.Shell)
	})

	t.Run("reads return copies", func(t *testing.T) {
		s := newStore(t)

		now := time.Now()
		rec := Record{
			ID:        testID(1),
			Command:   "make",
			Args:      []string{"test"},
			StartedAt: &now,
			Labels:    map[string]string{"team": "infra"},
		}
		require.NoError(t, s.AddRecord(rec))

		// Mutating the caller's value after insertion must not leak into the store.
		rec.Args[0] = "mutated"
		rec.Labels["team"] = "mutated"

		got, ok, err := s.Record(testID(1))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"test"}, got.Args)
		assert.Equal(t, "infra", got.Labels["team"])

		// Nor must mutating a returned value.
		got.Args[0] = "mutated"
		got.Labels["team"] = "mutated"
		*got.StartedAt = now.Add(time.Hour)

		again, _, err := s.Record(testID(1))
		require.NoError(t, err)
		assert.Equal(t, []string{"test"}, again.Args)
		assert.Equal(t, "infra", again.Labels["team"])
		assert.True(t, now.Equal(*again.StartedAt))

		cfg := RuntimeConfig{Env: map[string]string{"A": "1"}}
		require.NoError(t, s.SetRuntimeConfig(cfg))
		cfg.Env["A"] = "2"

		gotCfg, _, err := s.RuntimeConfig()
		require.NoError(t, err)
		assert.Equal(t, "1", gotCfg.Env["A"])
	})

	t.Run("concurrent distinct adds", func(t *testing.T) {
		s := newStore(t)

		const numGoroutines = 50
		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(n byte) {
				defer wg.Done()
				err := s.AddRecord(testRecord(n, fmt.Sprintf("cmd-%d", n)))
				assert.NoError(t, err)
			}(byte(i))
		}
		wg.Wait()

		records, err := s.Records()
		require.NoError(t, err)
		assert.Len(t, records, numGoroutines)

		latest, ok, err := s.LatestID()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Less(t, int(latest[15]), numGoroutines, "latest must be one of the inserted ids")
		for _, b := range latest[:15] {
			assert.Zero(t, b)
		}
	})

	t.Run("concurrent readers and writers", func(t *testing.T) {
		s := newStore(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(3)
			go func(n byte) {
				defer wg.Done()
				assert.NoError(t, s.AddRecord(testRecord(n, "w")))
			}(byte(i))
			go func() {
				defer wg.Done()
				records, err := s.Records()
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(records), 20)
			}()
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.SetRuntimeConfig(RuntimeConfig{MaxParallel: i}))
				_, ok, err := s.RuntimeConfig()
				assert.NoError(t, err)
				assert.True(t, ok)
			}(i)
		}
		wg.Wait()

		records, err := s.Records()
		require.NoError(t, err)
		assert.Len(t, records, 20)
	})
}

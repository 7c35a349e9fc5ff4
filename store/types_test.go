package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExecutionID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "canonical", input: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "urn form", input: "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "not-an-id", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseExecutionID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid execution id")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", id.String())
		})
	}
}

func TestNewExecutionID_Unique(t *testing.T) {
	seen := make(map[ExecutionID]bool)
	for i := 0; i < 100; i++ {
		id := NewExecutionID()
		assert.False(t, id.IsZero())
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRecord_JSONUsesTextID(t *testing.T) {
	id := NewExecutionID()
	data, err := json.Marshal(Record{ID: id, Command: "ls"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"`+id.String()+`"`)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded.ID)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := Record{
		ID:        testID(1),
		Args:      []string{"a"},
		StartedAt: &now,
		EndedAt:   &now,
		Labels:    map[string]string{"k": "v"},
	}

	clone := orig.Clone()
	assert.Equal(t, orig, clone)

	clone.Args[0] = "b"
	clone.Labels["k"] = "w"
	*clone.StartedAt = now.Add(time.Minute)

	assert.Equal(t, "a", orig.Args[0])
	assert.Equal(t, "v", orig.Labels["k"])
	assert.True(t, orig.StartedAt.Equal(now))
	assert.NotSame(t, orig.EndedAt, clone.EndedAt)
}

func TestRuntimeConfig_CloneIsDeep(t *testing.T) {
	orig := RuntimeConfig{Shell: "/bin/sh", Env: map[string]string{"A": "1"}}
	clone := orig.Clone()
	clone.Env["A"] = "2"
	assert.Equal(t, "1", orig.Env["A"])
}

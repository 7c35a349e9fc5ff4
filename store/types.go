package store

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ExecutionID uniquely identifies one execution.
// IDs are assigned by callers; the store never generates them.
type ExecutionID uuid.UUID

// NewExecutionID returns a new random ExecutionID.
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.New())
}

// ParseExecutionID parses the canonical text form of an ExecutionID.
func ParseExecutionID(s string) (ExecutionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ExecutionID{}, fmt.Errorf("invalid execution id %q: %w", s, err)
	}
	return ExecutionID(u), nil
}

// String returns the canonical UUID form of the ID.
func (id ExecutionID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the ID is the all-zero value.
func (id ExecutionID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ExecutionID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ExecutionID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = ExecutionID(u)
	return nil
}

// RecordState is the lifecycle state of an execution.
type RecordState string

const (
	RecordStatePending   RecordState = "pending"
	RecordStateRunning   RecordState = "running"
	RecordStateSucceeded RecordState = "succeeded"
	RecordStateFailed    RecordState = "failed"
)

// Record describes a single execution. The store treats it as opaque.
type Record struct {
	// ID identifies the execution this record belongs to.
	ID ExecutionID `json:"id"`
	// Command is the program that was executed.
	Command string `json:"command"`
	// Args are the arguments passed to Command.
	Args []string `json:"args,omitempty"`
	// State is the state the execution was in when the record was written.
	State RecordState `json:"state,omitempty"`
	// StartedAt is when the execution started. Nil if it never started.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the execution ended. Nil if it is still running.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// ExitCode is the process exit code.
	ExitCode int `json:"exit_code"`
	// Error contains the error message if the execution failed.
	Error string `json:"error,omitempty"`
	// Labels are free-form caller supplied annotations.
	Labels map[string]string `json:"labels,omitempty"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	c := r
	c.Args = slices.Clone(r.Args)
	c.Labels = maps.Clone(r.Labels)
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return c
}

// RuntimeConfig is the current configuration used when running executions.
type RuntimeConfig struct {
	// Shell is the interpreter used to run commands.
	Shell string `yaml:"shell" json:"shell"`
	// WorkDir is the working directory for executions.
	WorkDir string `yaml:"work_dir" json:"work_dir,omitempty"`
	// Timeout bounds the duration of a single execution.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MaxParallel limits the number of concurrent executions.
	MaxParallel int `yaml:"max_parallel" json:"max_parallel"`
	// Env holds extra environment variables for executions.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Clone returns a deep copy of the config.
func (c RuntimeConfig) Clone() RuntimeConfig {
	out := c
	out.Env = maps.Clone(c.Env)
	return out
}

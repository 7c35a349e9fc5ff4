package store

import "sync"

// recordTable is the record partition. records and latest change together under mu.
type recordTable struct {
	mu      sync.RWMutex
	records map[ExecutionID]Record
	latest  *ExecutionID
}

func newRecordTable() *recordTable {
	return &recordTable{
		records: make(map[ExecutionID]Record),
	}
}

// put stores record and marks it as latest. If persist is non-nil it runs inside the
// critical section first and a failure leaves the table unchanged.
func (t *recordTable) put(record Record, persist func(Record) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if persist != nil {
		if err := persist(record); err != nil {
			return err
		}
	}

	id := record.ID
	t.records[id] = record
	t.latest = &id
	return nil
}

func (t *recordTable) get(id ExecutionID) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return record.Clone(), true
}

func (t *recordTable) latestID() (ExecutionID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.latest == nil {
		return ExecutionID{}, false
	}
	return *t.latest, true
}

func (t *recordTable) snapshot() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Record, 0, len(t.records))
	for _, record := range t.records {
		result = append(result, record.Clone())
	}
	return result
}

// reload replaces the table with the result of load. load runs inside the critical
// section so no put can land between reading the backing state and swapping it in.
// A failed load leaves the table unchanged.
func (t *recordTable) reload(load func() (map[ExecutionID]Record, *ExecutionID, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, latest, err := load()
	if err != nil {
		return err
	}
	t.records = records
	t.latest = latest
	return nil
}

// configCell is the runtime config partition.
type configCell struct {
	mu     sync.RWMutex
	config *RuntimeConfig
}

func (c *configCell) set(config RuntimeConfig, persist func(RuntimeConfig) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if persist != nil {
		if err := persist(config); err != nil {
			return err
		}
	}
	c.config = &config
	return nil
}

func (c *configCell) get() (RuntimeConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.config == nil {
		return RuntimeConfig{}, false
	}
	return c.config.Clone(), true
}

// reload replaces the cell with the result of load, under the write lock.
// A nil config clears the cell.
func (c *configCell) reload(load func() (*RuntimeConfig, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config, err := load()
	if err != nil {
		return err
	}
	c.config = config
	return nil
}

// MemoryStore keeps records and the runtime config in memory only (no persistence).
// A *MemoryStore may be shared freely; every copy of the pointer sees the same state.
type MemoryStore struct {
	records *recordTable
	config  *configCell
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: newRecordTable(),
		config:  &configCell{},
	}
}

// AddRecord stores a copy of record, replacing any earlier record with the same ID.
func (s *MemoryStore) AddRecord(record Record) error {
	return s.records.put(record.Clone(), nil)
}

// Record returns a copy of the record for id.
func (s *MemoryStore) Record(id ExecutionID) (Record, bool, error) {
	record, ok := s.records.get(id)
	return record, ok, nil
}

// LatestID returns the ID of the most recent AddRecord call.
func (s *MemoryStore) LatestID() (ExecutionID, bool, error) {
	id, ok := s.records.latestID()
	return id, ok, nil
}

// Records returns copies of all records. The order is unspecified.
func (s *MemoryStore) Records() ([]Record, error) {
	return s.records.snapshot(), nil
}

// RuntimeConfig returns a copy of the current runtime config.
func (s *MemoryStore) RuntimeConfig() (RuntimeConfig, bool, error) {
	config, ok := s.config.get()
	return config, ok, nil
}

// SetRuntimeConfig replaces the runtime config with a copy of config.
func (s *MemoryStore) SetRuntimeConfig(config RuntimeConfig) error {
	return s.config.set(config.Clone(), nil)
}

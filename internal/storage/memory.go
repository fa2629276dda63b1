package storage

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage with process-lifetime in-memory collections
type MemoryStorage struct {
	mu          sync.RWMutex
	collections map[string]*collection
	seq         atomic.Uint64
}

// collection guards its own records so unrelated collections never contend
type collection struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		collections: make(map[string]*collection),
	}
}

// CreateCollection creates a new empty collection
func (m *MemoryStorage) CreateCollection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	m.collections[name] = &collection{records: make([]Record, 0)}
	return nil
}

// Collections returns the collection names in sorted order
func (m *MemoryStorage) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Clear removes every record of a collection
func (m *MemoryStorage) Clear(name string) error {
	c, err := m.collection(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make([]Record, 0)
	return nil
}

// Insert stores a copy of rec and returns it with its id and sequence set
func (m *MemoryStorage) Insert(name string, rec Record) (Record, error) {
	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	stored := rec.clone()
	stored[FieldID] = uuid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Assigned under the collection lock so sequence order matches slice order
	stored[FieldSeq] = m.seq.Add(1)
	c.records = append(c.records, stored)

	return stored.clone(), nil
}

// FindByField returns every record whose field equals value, oldest first
func (m *MemoryStorage) FindByField(name, field string, value interface{}) ([]Record, error) {
	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]Record, 0)
	for _, rec := range c.records {
		v, ok := rec[field]
		if !ok {
			continue
		}
		if reflect.DeepEqual(v, value) {
			matches = append(matches, rec.clone())
		}
	}

	return matches, nil
}

// All returns every record of a collection, oldest first
func (m *MemoryStorage) All(name string) ([]Record, error) {
	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make([]Record, len(c.records))
	for i, rec := range c.records {
		all[i] = rec.clone()
	}

	return all, nil
}

// Close closes the storage (no-op for memory storage)
func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) collection(name string) (*collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.collections[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	return c, nil
}

func (r Record) clone() Record {
	out := make(Record, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}

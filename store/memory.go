package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// slot holds one position of a collection. A deleted slot keeps its
// position with live set to false.
type slot struct {
	rec  Record
	live bool
}

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]slot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]slot),
	}
}

// deepCopy returns a deep copy of a document by round-tripping through JSON.
func deepCopy(src Record) Record {
	if src == nil {
		return nil
	}
	b, _ := json.Marshal(src)
	var dst Record
	_ = json.Unmarshal(b, &dst)
	return dst
}

// sameValue compares two JSON values by their encoding, so that an int and
// the float64 it decodes to are equal.
func sameValue(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

// lookup returns the live slot at id. Callers must hold m.mu.
func (m *MemoryStore) lookup(collection string, id int) (*slot, error) {
	coll := m.collections[collection]
	if id < 0 || id >= len(coll) || !coll[id].live {
		return nil, fmt.Errorf("%s/%d: %w", collection, id, ErrNotFound)
	}
	return &coll[id], nil
}

// copyRecord is deepCopy that never returns nil.
func copyRecord(src Record) Record {
	if dst := deepCopy(src); dst != nil {
		return dst
	}
	return Record{}
}

func (m *MemoryStore) appendLocked(collection string, rec Record) int {
	m.collections[collection] = append(m.collections[collection], slot{rec: copyRecord(rec), live: true})
	return len(m.collections[collection]) - 1
}

func (m *MemoryStore) Append(collection string, rec Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(collection, rec), nil
}

func (m *MemoryStore) AppendUnique(collection string, rec Record, field string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want, ok := rec[field]
	if ok {
		for id, s := range m.collections[collection] {
			if !s.live {
				continue
			}
			if have, exists := s.rec[field]; exists && sameValue(have, want) {
				return 0, fmt.Errorf("%s/%d already has %s=%v: %w", collection, id, field, want, ErrDuplicate)
			}
		}
	}
	return m.appendLocked(collection, rec), nil
}

func (m *MemoryStore) Get(collection string, id int) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(collection, id)
	if err != nil {
		return nil, err
	}
	return deepCopy(s.rec), nil
}

func (m *MemoryStore) Replace(collection string, id int, rec Record, keep ...string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(collection, id)
	if err != nil {
		return nil, err
	}
	s.rec = withKept(copyRecord(rec), s.rec, keep)
	return deepCopy(s.rec), nil
}

func (m *MemoryStore) Merge(collection string, id int, partial Record, keep ...string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(collection, id)
	if err != nil {
		return nil, err
	}
	for field, v := range withoutKept(deepCopy(partial), keep) {
		s.rec[field] = v
	}
	return deepCopy(s.rec), nil
}

func (m *MemoryStore) Tombstone(collection string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(collection, id)
	if err != nil {
		return err
	}
	s.rec = nil
	s.live = false
	return nil
}

func (m *MemoryStore) Len(collection string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection]), nil
}

func (m *MemoryStore) Slice(collection string, start, end int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collections[collection]
	start, end = clampRange(start, end, len(coll))
	result := make([]Record, 0, end-start)
	for _, s := range coll[start:end] {
		if s.live {
			result = append(result, deepCopy(s.rec))
		} else {
			result = append(result, nil)
		}
	}
	return result, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

package trust

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in memory Store, suitable for tests and single process
// deployments seeded at startup. Use the boltdb or pgdb backends for
// persistent records.
type MemStore struct {
	mut     sync.RWMutex
	records map[string]IdentityRecord
}

// NewMemStore instantiates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]IdentityRecord)}
}

// SaveRecord inserts or replaces rec, keyed by rec.Name.
func (self *MemStore) SaveRecord(_ context.Context, rec IdentityRecord) error {
	err := rec.Check()
	if nil != err {
		return wrapError(err, "invalid record")
	}

	self.mut.Lock()
	defer self.mut.Unlock()
	self.records[rec.Name] = rec

	return nil
}

// LoadRecord loads the record named name into dst.
func (self *MemStore) LoadRecord(_ context.Context, name string, dst *IdentityRecord) error {
	self.mut.RLock()
	defer self.mut.RUnlock()

	rec, found := self.records[name]
	if !found {
		return wrapError(ErrNotFound, "no record named %s", name)
	}
	*dst = rec

	return nil
}

// RemoveRecord removes the record named name.
func (self *MemStore) RemoveRecord(_ context.Context, name string) error {
	self.mut.Lock()
	defer self.mut.Unlock()

	_, found := self.records[name]
	if !found {
		return wrapError(ErrNotFound, "no record named %s", name)
	}
	delete(self.records, name)

	return nil
}

// ListRecords returns all records in name order.
func (self *MemStore) ListRecords(_ context.Context) ([]IdentityRecord, error) {
	self.mut.RLock()
	defer self.mut.RUnlock()

	rv := make([]IdentityRecord, 0, len(self.records))
	for _, rec := range self.records {
		rv = append(rv, rec)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].Name < rv[j].Name })

	return rv, nil
}

// RecordCount returns the number of records.
func (self *MemStore) RecordCount(_ context.Context) (int, error) {
	self.mut.RLock()
	defer self.mut.RUnlock()

	return len(self.records), nil
}

var _ Store = &MemStore{}

package session

import (
	"sync"
)

const (
	numSlot = 16
)

type TimedKey interface {
	comparable
	Timed
}

type slot[K TimedKey, V any] struct {
	mut   sync.RWMutex
	t     int64
	store map[K]V
}

// MemStore is an in memory session Store that automatically expires keys.
//
// Entries are spread over time keyed slots. A slot is recycled whenever a key
// carrying a newer pseudo time reaches it, which bounds retention without a
// sweeper goroutine.
type MemStore[K TimedKey, V any] struct {
	KeyFacto KeyFactory[K]

	// OnEvict is called for each value dropped when a slot is recycled.
	// Values holding sensitive material shall be released there.
	OnEvict func(V)

	slots [numSlot]slot[K, V]
}

// NewMemStore instantiates a new MemStore.
// It errors if kf is nil.
func NewMemStore[K TimedKey, V any](kf KeyFactory[K]) (*MemStore[K, V], error) {
	if nil == kf {
		return nil, newError("nil KeyFactory")
	}

	return &MemStore[K, V]{KeyFacto: kf}, nil
}

// Get returns the value indexed by key.
// The bool flag is true if the key exists in the MemStore.
func (self *MemStore[K, V]) Get(key K) (V, bool) {
	var v V
	var present bool

	if err := self.KeyFacto.Check(key); nil != err {
		return v, present
	}

	ts := key.T()
	slot := self.slotFor(ts)
	slot.mut.RLock()
	defer slot.mut.RUnlock()

	if ts == slot.t {
		v, present = slot.store[key]
	}

	return v, present

}

// Pop removes the key from the MemStore and returns the associated value.
// The bool flag is true if the key was found in the MemStore.
func (self *MemStore[K, V]) Pop(key K) (V, bool) {
	var v V
	var present bool

	if err := self.KeyFacto.Check(key); nil != err {
		return v, present
	}

	ts := key.T()
	slot := self.slotFor(ts)
	slot.mut.Lock()
	defer slot.mut.Unlock()

	if ts == slot.t {
		v, present = slot.store[key]
		delete(slot.store, key)
	}

	return v, present

}

// Set registers key, data in the MemStore.
// It errors if key is not valid.
func (self *MemStore[K, V]) Set(key K, data V) error {
	// validate key
	err := self.KeyFacto.Check(key)
	if nil != err {
		return wrapError(err, "invalid key")
	}

	self.insert(key, data)

	return nil
}

// Save registers data in the MemStore using a new key.
// Save returns the key indexing data.
func (self *MemStore[K, V]) Save(data V) (K, error) {
	key := self.KeyFacto.New(0)
	self.insert(key, data)

	return key, nil
}

func (self *MemStore[K, V]) slotFor(ts int64) *slot[K, V] {
	return &(self.slots[ts%numSlot])
}

func (self *MemStore[K, V]) insert(key K, data V) {
	ts := key.T()
	slot := self.slotFor(ts)

	var evicted map[K]V
	slot.mut.Lock()
	if ts != slot.t || nil == slot.store {
		// slot contains expired data
		evicted = slot.store
		slot.t = ts
		slot.store = make(map[K]V)
	}
	slot.store[key] = data
	slot.mut.Unlock()

	// OnEvict runs outside the slot lock so that it may reenter the store
	if nil != self.OnEvict {
		for _, data := range evicted {
			self.OnEvict(data)
		}
	}
}

var _ Store[Sid, any] = &MemStore[Sid, any]{}

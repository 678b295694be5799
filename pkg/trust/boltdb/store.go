// Package boltdb provides a persistent trust.Store that keeps records in a file.
package boltdb

import (
	"context"
	"crypto"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"code.attlink.org/golang/internal/algos"
	"code.attlink.org/golang/pkg/trust"
)

const (
	connectTimeout = 5 * time.Second
	hashName       = algos.HASH_BLAKE2S

	recordTbl = "recordTbl"
)

type recordStore struct {
	dbpath string
	hash   crypto.Hash
}

// New returns a trust.Store implementation that persists IdentityRecords in a
// single file boltdb database.
// It errors if the database schema can not be created.
func New(dbpath string) (trust.Store, error) {
	hash, err := algos.GetHash(hashName)
	if nil != err {
		return nil, wrapError(err, "unavailable record key hash")
	}
	store := recordStore{dbpath: dbpath, hash: hash}

	db, err := bolt.Open(dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordTbl))
		return wrapError(err, "failed %s bucket creation", recordTbl) // nil if err is nil
	})
	if nil != err {
		return nil, wrapError(err, "failed db initialization")
	}

	return store, nil
}

// SaveRecord inserts or replaces rec, keyed by rec.Name.
// It errors if rec is invalid or could not be stored.
func (self recordStore) SaveRecord(_ context.Context, rec trust.IdentityRecord) error {
	err := rec.Check()
	if nil != err {
		return wrapError(err, "invalid record")
	}

	srzrec, err := cbor.Marshal(rec)
	if nil != err {
		return wrapError(err, "failed cbor.Marshal(rec)")
	}

	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(recordTbl))
		if nil == tbl {
			return newError("missing %s bucket", recordTbl)
		}
		return tbl.Put(self.recordKey(rec.Name), srzrec)
	})

	return wrapError(err, "failed db.Update") // nil if err is nil
}

// LoadRecord loads the record named name into dst.
// It errors with trust.ErrNotFound if no such record exists.
func (self recordStore) LoadRecord(_ context.Context, name string, dst *trust.IdentityRecord) error {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.View(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(recordTbl))
		if nil == tbl {
			return newError("missing %s bucket", recordTbl)
		}
		srzrec := tbl.Get(self.recordKey(name))
		if nil == srzrec {
			return wrapError(trust.ErrNotFound, "no record named %s", name)
		}
		return cbor.Unmarshal(srzrec, dst)
	})

	return wrapError(err, "failed db.View") // nil if err is nil
}

// RemoveRecord removes the record named name.
// It errors with trust.ErrNotFound if no such record exists.
func (self recordStore) RemoveRecord(_ context.Context, name string) error {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(recordTbl))
		if nil == tbl {
			return newError("missing %s bucket", recordTbl)
		}
		key := self.recordKey(name)
		if nil == tbl.Get(key) {
			return wrapError(trust.ErrNotFound, "no record named %s", name)
		}
		return tbl.Delete(key)
	})

	return wrapError(err, "failed db.Update") // nil if err is nil
}

// ListRecords returns all records.
func (self recordStore) ListRecords(_ context.Context) ([]trust.IdentityRecord, error) {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	records := make([]trust.IdentityRecord, 0, 4)
	err = db.View(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(recordTbl))
		if nil == tbl {
			return newError("missing %s bucket", recordTbl)
		}
		return tbl.ForEach(func(_, srzrec []byte) error {
			rec := trust.IdentityRecord{}
			err := cbor.Unmarshal(srzrec, &rec)
			if nil != err {
				return wrapError(err, "failed unmarshaling record")
			}
			records = append(records, rec)
			return nil
		})
	})
	if nil != err {
		return nil, wrapError(err, "failed db.View")
	}

	return records, nil
}

// RecordCount returns the number of records.
func (self recordStore) RecordCount(_ context.Context) (int, error) {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return -1, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	var count int
	err = db.View(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(recordTbl))
		if nil == tbl {
			return newError("missing %s bucket", recordTbl)
		}
		count = tbl.Stats().KeyN
		return nil
	})
	if nil != err {
		return -1, wrapError(err, "failed db.View")
	}

	return count, nil
}

var _ trust.Store = recordStore{}

// recordKey returns the fixed size storage key of a record name.
//
// Names are hashed so that key sizes stay bounded whatever the caller puts in
// Name.
func (self recordStore) recordKey(name string) []byte {
	h := self.hash.New()
	h.Write([]byte(name))
	return h.Sum(nil)
}

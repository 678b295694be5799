package boltdb

import (
	"context"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"

	"code.attlink.org/golang/pkg/dhsession"
	"code.attlink.org/golang/pkg/trust"
)

func newTestStore(t *testing.T) trust.Store {
	t.Helper()

	dbpath := filepath.Join(t.TempDir(), "trust.db")
	store, err := New(dbpath)
	if nil != err {
		t.Fatalf("Failed store creation, got error %v", err)
	}
	return store
}

func testRecord(name string, seed string) trust.IdentityRecord {
	measure := sha256.Sum256([]byte(seed))
	return trust.IdentityRecord{
		Name:      name,
		MrEnclave: measure[:],
		MinIsvSvn: 3,
	}
}

func TestStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := testRecord("service-a", "code a")
	err := store.SaveRecord(ctx, rec)
	if nil != err {
		t.Fatalf("Failed SaveRecord, got error %v", err)
	}

	var loaded trust.IdentityRecord
	err = store.LoadRecord(ctx, "service-a", &loaded)
	if nil != err {
		t.Fatalf("Failed LoadRecord, got error %v", err)
	}
	if loaded.Name != rec.Name || loaded.MinIsvSvn != rec.MinIsvSvn {
		t.Errorf("record roundtrip altered the record, %+v != %+v", loaded, rec)
	}
	if !loaded.Matches(dhsession.PeerIdentity{MrEnclave: sha256.Sum256([]byte("code a")), IsvSvn: 3}) {
		t.Error("loaded record does not match its own peer")
	}
}

func TestStoreReplace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.SaveRecord(ctx, testRecord("service-a", "code a"))
	if nil != err {
		t.Fatalf("Failed SaveRecord, got error %v", err)
	}
	updated := testRecord("service-a", "code a")
	updated.MinIsvSvn = 7
	err = store.SaveRecord(ctx, updated)
	if nil != err {
		t.Fatalf("Failed SaveRecord, got error %v", err)
	}

	count, err := store.RecordCount(ctx)
	if nil != err {
		t.Fatalf("Failed RecordCount, got error %v", err)
	}
	if 1 != count {
		t.Errorf("RecordCount -> %d != 1", count)
	}

	var loaded trust.IdentityRecord
	err = store.LoadRecord(ctx, "service-a", &loaded)
	if nil != err {
		t.Fatalf("Failed LoadRecord, got error %v", err)
	}
	if 7 != loaded.MinIsvSvn {
		t.Errorf("record was not replaced, MinIsvSvn -> %d != 7", loaded.MinIsvSvn)
	}
}

func TestStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.RemoveRecord(ctx, "absent")
	if !errors.Is(err, trust.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	err = store.SaveRecord(ctx, testRecord("service-a", "code a"))
	if nil != err {
		t.Fatalf("Failed SaveRecord, got error %v", err)
	}
	err = store.RemoveRecord(ctx, "service-a")
	if nil != err {
		t.Fatalf("Failed RemoveRecord, got error %v", err)
	}

	var loaded trust.IdentityRecord
	err = store.LoadRecord(ctx, "service-a", &loaded)
	if !errors.Is(err, trust.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	names := []string{"service-a", "service-b", "service-c"}
	for _, name := range names {
		err := store.SaveRecord(ctx, testRecord(name, name))
		if nil != err {
			t.Fatalf("Failed SaveRecord %s, got error %v", name, err)
		}
	}

	records, err := store.ListRecords(ctx)
	if nil != err {
		t.Fatalf("Failed ListRecords, got error %v", err)
	}
	if len(names) != len(records) {
		t.Fatalf("ListRecords returned %d records, want %d", len(records), len(names))
	}
	seen := make(map[string]bool)
	for _, rec := range records {
		seen[rec.Name] = true
	}
	for _, name := range names {
		if !seen[name] {
			t.Errorf("ListRecords misses record %s", name)
		}
	}
}

func TestStoreRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.SaveRecord(ctx, trust.IdentityRecord{Name: "pins-nothing"})
	if nil == err {
		t.Error("Could save an invalid record")
	}
}

func TestPolicyOverStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.SaveRecord(ctx, testRecord("service-a", "code a"))
	if nil != err {
		t.Fatalf("Failed SaveRecord, got error %v", err)
	}

	policy := trust.Policy{Store: store}
	peer := dhsession.PeerIdentity{MrEnclave: sha256.Sum256([]byte("code a")), IsvSvn: 4}
	peer.Attributes.Flags = dhsession.AttrInitialized

	rec, err := policy.Evaluate(ctx, peer)
	if nil != err {
		t.Fatalf("Failed Evaluate, got error %v", err)
	}
	if "service-a" != rec.Name {
		t.Errorf("Evaluate admitted wrong record %s", rec.Name)
	}
}

package pgdb

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"code.attlink.org/golang/pkg/dhsession"
	"code.attlink.org/golang/pkg/trust"
)

const testDSN = "host=localhost port=5432 database=attlink user=postgres password=notasecret sslmode=disable search_path=attlink_test,public"

var dbInitError error

func init() {
	pgconn, err := pgx.Connect(context.Background(), testDSN)
	if nil == err {
		err = Migrate(pgconn, "attlink_test")
	}
	dbInitError = err
}

func newConn(ctx context.Context, t *testing.T) *pgx.Conn {
	if nil != dbInitError {
		// dbInitError is set by init block above
		t.Skipf("attlink_test schema unavailable, got error %v", dbInitError)
	}
	pgconn, err := pgx.Connect(ctx, testDSN)
	if nil != err {
		t.Fatalf("failed pgx.Connect, got error %v", err)
	}

	return pgconn
}

// newRecordStore returns a RecordStore running inside a transaction that is
// rolled back when the test completes.
func newRecordStore(ctx context.Context, t *testing.T) *RecordStore {
	pgconn := newConn(ctx, t)
	tx, err := pgconn.Begin(ctx)
	if nil != err {
		t.Fatalf("failed starting transaction, got error %v", err)
	}

	_, err = tx.Exec(ctx, "DELETE FROM identity_record")
	if nil != err {
		t.Fatalf("failed tx initialization, got error %v", err)
	}
	t.Cleanup(func() {
		err := tx.Rollback(ctx)
		if nil != err {
			t.Logf("failed rolling back test transaction, got error %v", err)
		}
	})

	return &RecordStore{DB: tx}
}

func testRecord(name string, seed string) trust.IdentityRecord {
	measure := sha256.Sum256([]byte(seed))
	return trust.IdentityRecord{
		Name:      name,
		MrEnclave: measure[:],
		MinIsvSvn: 3,
	}
}

func TestPing(t *testing.T) {
	ctx := context.Background() // t.Context() gets in the way when controlling transaction
	pgconn := newConn(ctx, t)
	err := pgconn.Ping(ctx)
	if nil != err {
		t.Fatalf("failed connection test, got error %v", err)
	}
}

func TestRecordStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore(ctx, t)

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
	if 0 != len(loaded.MrSigner) {
		t.Errorf("unpinned MrSigner came back non empty, % X", loaded.MrSigner)
	}
}

func TestRecordStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore(ctx, t)

	err := store.SaveRecord(ctx, testRecord("service-a", "code a"))
	if nil != err {
		t.Fatalf("Failed SaveRecord, got error %v", err)
	}
	updated := testRecord("service-a", "code a")
	updated.MinIsvSvn = 9
	updated.AllowDebug = true
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
	if 9 != loaded.MinIsvSvn || !loaded.AllowDebug {
		t.Errorf("record was not replaced, got %+v", loaded)
	}
}

func TestRecordStoreRemove(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore(ctx, t)

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

func TestRecordStoreList(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore(ctx, t)

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
	for pos, name := range names {
		if name != records[pos].Name {
			t.Errorf("ListRecords order control, %s != %s", records[pos].Name, name)
		}
	}
}

func TestPolicyOverRecordStore(t *testing.T) {
	ctx := context.Background()
	store := newRecordStore(ctx, t)

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

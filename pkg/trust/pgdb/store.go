// Package pgdb provides a trust.Store backed by a postgres database, suitable
// for deployments where many endpoints share one set of admitted identities.
package pgdb

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"code.attlink.org/golang/pkg/trust"
)

// PGDB is implemented by pgx.Tx, pgx.Conn & pgxpool.Pool
// accessing a postgres database through this common interface simplifies testing
type PGDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordStore is a trust.Store keeping IdentityRecords in postgres.
type RecordStore struct {
	DB PGDB
}

//go:embed trust_schema.sql
var schemaScriptTpl string

// Migrate creates the record schema owned by dbschema.
func Migrate(pgconn *pgx.Conn, dbschema string) error {
	schemaName := pgx.Identifier{dbschema}.Sanitize()
	schemaScript := strings.ReplaceAll(schemaScriptTpl, "${schema_name}", schemaName)

	_, err := pgconn.Exec(context.Background(), schemaScript)

	return wrapError(err, "Failed db schema initialization") // nil if err is nil...
}

// NewRecordStore returns a RecordStore pooling connections to dsn.
func NewRecordStore(ctx context.Context, dsn string) (*RecordStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if nil != err {
		return nil, wrapError(err, "failed connection pool creation")
	}

	return &RecordStore{DB: pool}, nil
}

// srzRecord mirrors the identity_record row layout.
type srzRecord struct {
	Name       string
	MrEnclave  []byte
	MrSigner   []byte
	IsvProdId  int32
	MinIsvSvn  int32
	AllowDebug bool
}

func (self srzRecord) record() trust.IdentityRecord {
	return trust.IdentityRecord{
		Name:       self.Name,
		MrEnclave:  self.MrEnclave,
		MrSigner:   self.MrSigner,
		IsvProdId:  uint16(self.IsvProdId),
		MinIsvSvn:  uint16(self.MinIsvSvn),
		AllowDebug: self.AllowDebug,
	}
}

// SaveRecord inserts or replaces rec, keyed by rec.Name.
// It errors if rec is invalid or could not be saved.
func (self *RecordStore) SaveRecord(ctx context.Context, rec trust.IdentityRecord) error {
	err := rec.Check()
	if nil != err {
		return wrapError(err, "invalid record")
	}

	_, err = self.DB.Exec(
		ctx,
		`INSERT INTO identity_record(name, mr_enclave, mr_signer, isv_prod_id, min_isv_svn, allow_debug)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE SET
		   mr_enclave = EXCLUDED.mr_enclave,
		   mr_signer = EXCLUDED.mr_signer,
		   isv_prod_id = EXCLUDED.isv_prod_id,
		   min_isv_svn = EXCLUDED.min_isv_svn,
		   allow_debug = EXCLUDED.allow_debug`,
		rec.Name,
		nullable(rec.MrEnclave),
		nullable(rec.MrSigner),
		int32(rec.IsvProdId),
		int32(rec.MinIsvSvn),
		rec.AllowDebug,
	)

	return wrapError(err, "failed saving record") // nil if err is nil...
}

// LoadRecord loads the record named name into dst.
// It errors with trust.ErrNotFound if no such record exists.
func (self *RecordStore) LoadRecord(ctx context.Context, name string, dst *trust.IdentityRecord) error {
	rows, err := self.DB.Query(
		ctx,
		// columns are renamed to match the srzRecord struct
		`SELECT
		   name as "Name",
		   coalesce(mr_enclave, ''::bytea) as "MrEnclave",
		   coalesce(mr_signer, ''::bytea) as "MrSigner",
		   isv_prod_id as "IsvProdId",
		   min_isv_svn as "MinIsvSvn",
		   allow_debug as "AllowDebug"
		 FROM identity_record
		 WHERE name = $1
		`,
		name,
	)
	if nil != err {
		return wrapError(err, "failed DB.Query")
	}
	srzrec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[srzRecord])
	if nil != err {
		if errors.Is(err, pgx.ErrNoRows) {
			return wrapError(trust.ErrNotFound, "no record named %s", name)
		}
		return wrapError(err, "failed loading record")
	}
	*dst = srzrec.record()

	return nil
}

// RemoveRecord removes the record named name.
// It errors with trust.ErrNotFound if no such record exists.
func (self *RecordStore) RemoveRecord(ctx context.Context, name string) error {
	var deleted int
	row := self.DB.QueryRow(
		ctx,
		`WITH deleted AS (DELETE FROM identity_record WHERE name = $1 RETURNING id)
		 SELECT count(id) FROM deleted`,
		name,
	)
	err := row.Scan(&deleted)
	if nil != err {
		return wrapError(err, "failed DELETE query")
	}
	if 0 == deleted {
		return wrapError(trust.ErrNotFound, "no record named %s", name)
	}

	return nil
}

// ListRecords returns all records in name order.
func (self *RecordStore) ListRecords(ctx context.Context) ([]trust.IdentityRecord, error) {
	rows, err := self.DB.Query(
		ctx,
		`SELECT
		   name as "Name",
		   coalesce(mr_enclave, ''::bytea) as "MrEnclave",
		   coalesce(mr_signer, ''::bytea) as "MrSigner",
		   isv_prod_id as "IsvProdId",
		   min_isv_svn as "MinIsvSvn",
		   allow_debug as "AllowDebug"
		 FROM identity_record
		 ORDER BY name
		`,
	)
	if nil != err {
		return nil, wrapError(err, "failed DB.Query")
	}
	srzrecs, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[srzRecord])
	if nil != err {
		return nil, wrapError(err, "failed pgx.CollectRows")
	}

	records := make([]trust.IdentityRecord, 0, len(srzrecs))
	for _, srzrec := range srzrecs {
		records = append(records, srzrec.record())
	}

	return records, nil
}

// RecordCount returns the number of records.
func (self *RecordStore) RecordCount(ctx context.Context) (int, error) {
	var rv int
	row := self.DB.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM identity_record`,
	)
	err := row.Scan(&rv)
	if nil != err {
		return 0, wrapError(err, "failed count query")
	}

	return rv, nil
}

var _ trust.Store = &RecordStore{}

// nullable maps empty byte slices to NULL.
func nullable(data []byte) []byte {
	if 0 == len(data) {
		return nil
	}
	return data
}

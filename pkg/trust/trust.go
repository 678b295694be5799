// Package trust evaluates verified peer identities against admitted identity
// records. The handshake authenticates WHO the peer is; this package decides
// whether that peer is one the application accepts.
package trust

import (
	"bytes"
	"context"

	"code.attlink.org/golang/internal/observability"
	"code.attlink.org/golang/internal/utils"
	"code.attlink.org/golang/pkg/dhsession"
)

// measureSize is the byte size of an enclave measurement.
const measureSize = 32

// IdentityRecord admits a family of enclave identities.
//
// A record pins the peer code measurement (MrEnclave), its signer (MrSigner
// plus IsvProdId), or both. Signer based records keep matching after enclave
// code upgrades, MinIsvSvn guards against rollbacks to vulnerable builds.
type IdentityRecord struct {
	// Name identifies the record inside its Store.
	Name string `json:"name" cbor:"1,keyasint"`

	// MrEnclave pins the peer code measurement. Empty admits any measurement.
	MrEnclave utils.HexBinary `json:"mrEnclave,omitempty" cbor:"2,keyasint,omitempty"`

	// MrSigner pins the peer signer measurement. Empty admits any signer.
	MrSigner utils.HexBinary `json:"mrSigner,omitempty" cbor:"3,keyasint,omitempty"`

	// IsvProdId restricts signer based records to one product line.
	IsvProdId uint16 `json:"isvProdId" cbor:"4,keyasint"`

	// MinIsvSvn is the lowest admitted security version number.
	MinIsvSvn uint16 `json:"minIsvSvn" cbor:"5,keyasint"`

	// AllowDebug admits peers running with the debug attribute.
	AllowDebug bool `json:"allowDebug,omitempty" cbor:"6,keyasint,omitempty"`
}

// Check validates the IdentityRecord.
func (self IdentityRecord) Check() error {
	if "" == self.Name {
		return newError("missing record name")
	}
	if 0 != len(self.MrEnclave) && measureSize != len(self.MrEnclave) {
		return newError("invalid MrEnclave size %d, need %d", len(self.MrEnclave), measureSize)
	}
	if 0 != len(self.MrSigner) && measureSize != len(self.MrSigner) {
		return newError("invalid MrSigner size %d, need %d", len(self.MrSigner), measureSize)
	}
	if 0 == len(self.MrEnclave) && 0 == len(self.MrSigner) {
		return newError("record pins neither MrEnclave nor MrSigner")
	}
	return nil
}

// Matches reports whether peer falls inside the identity family the record
// admits. Matching ignores the security version and the debug attribute,
// those are ruled on by Policy Evaluate.
func (self IdentityRecord) Matches(peer dhsession.PeerIdentity) bool {
	if len(self.MrEnclave) > 0 && !bytes.Equal(self.MrEnclave, peer.MrEnclave[:]) {
		return false
	}
	if len(self.MrSigner) > 0 {
		if !bytes.Equal(self.MrSigner, peer.MrSigner[:]) {
			return false
		}
		if self.IsvProdId != peer.IsvProdId {
			return false
		}
	}
	return true
}

// Store persists IdentityRecords.
type Store interface {
	// SaveRecord inserts or replaces rec, keyed by rec.Name.
	SaveRecord(ctx context.Context, rec IdentityRecord) error

	// LoadRecord loads the record named name into dst.
	// It errors with ErrNotFound if no such record exists.
	LoadRecord(ctx context.Context, name string, dst *IdentityRecord) error

	// RemoveRecord removes the record named name.
	// It errors with ErrNotFound if no such record exists.
	RemoveRecord(ctx context.Context, name string) error

	// ListRecords returns all records.
	ListRecords(ctx context.Context) ([]IdentityRecord, error)

	// RecordCount returns the number of records.
	RecordCount(ctx context.Context) (int, error)
}

// Policy evaluates peer identities against the records of a Store.
type Policy struct {
	Store Store
}

// Evaluate returns the first record admitting peer.
//
// It errors with ErrUnknownIdentity when no record matches peer, with
// ErrOutdatedSvn when a record matches but peer runs below its MinIsvSvn, and
// with ErrDebugNotAllowed when a record matches but peer runs in debug mode
// the record does not admit. Records are evaluated in Store listing order.
func (self Policy) Evaluate(ctx context.Context, peer dhsession.PeerIdentity) (IdentityRecord, error) {
	var rv IdentityRecord
	if nil == self.Store {
		return rv, newError("missing Store")
	}

	records, err := self.Store.ListRecords(ctx)
	if nil != err {
		return rv, wrapError(err, "failed listing records")
	}

	// stay silent unless the caller installed an Observability
	log := observability.NoopLogger()
	if obs := observability.GetObservability(ctx); nil != obs {
		log = obs.Log()
	}

	var reject error
	for _, rec := range records {
		if !rec.Matches(peer) {
			continue
		}
		if peer.IsvSvn < rec.MinIsvSvn {
			log.Debug("record rejects peer security version",
				"record", rec.Name, "isvSvn", peer.IsvSvn, "minIsvSvn", rec.MinIsvSvn)
			reject = wrapError(ErrOutdatedSvn,
				"record %s requires svn >= %d, peer runs %d", rec.Name, rec.MinIsvSvn, peer.IsvSvn)
			continue
		}
		if peer.Attributes.Debug() && !rec.AllowDebug {
			log.Debug("record rejects debug peer", "record", rec.Name)
			reject = wrapError(ErrDebugNotAllowed, "record %s admits no debug enclave", rec.Name)
			continue
		}
		log.Debug("peer admitted", "record", rec.Name)
		return rec, nil
	}

	if nil == reject {
		reject = wrapError(ErrUnknownIdentity, "no record matches peer")
	}
	return rv, reject
}

package dhsession

import (
	"encoding/binary"
)

// Attribute flag bits.
const (
	AttrInitialized = uint64(0x01)
	AttrDebug       = uint64(0x02)
	AttrMode64      = uint64(0x04)
)

// Attributes holds the security attribute flags of an enclave.
type Attributes struct {
	Flags uint64 `json:"flags" cbor:"1,keyasint"`
	Xfrm  uint64 `json:"xfrm" cbor:"2,keyasint"`
}

// Debug reports whether the debug attribute is set.
func (self Attributes) Debug() bool {
	return 0 != self.Flags&AttrDebug
}

// PeerIdentity is the platform identity of a handshake peer, extracted from its
// verified attestation report. It is produced once per successful handshake and
// never mutated afterwards; evaluating it against a trust policy is the caller
// responsibility.
type PeerIdentity struct {
	// CpuSvn is the platform security version vector.
	CpuSvn [16]byte `json:"cpuSvn" cbor:"1,keyasint"`

	// MiscSelect is an opaque platform selector.
	MiscSelect uint32 `json:"miscSelect" cbor:"2,keyasint"`

	// Attributes holds the enclave security attribute flags.
	Attributes Attributes `json:"attributes" cbor:"3,keyasint"`

	// MrEnclave is the enclave code measurement hash.
	MrEnclave [32]byte `json:"mrEnclave" cbor:"4,keyasint"`

	// MrSigner is the enclave signer measurement hash.
	MrSigner [32]byte `json:"mrSigner" cbor:"5,keyasint"`

	// IsvProdId is the signer assigned product id.
	IsvProdId uint16 `json:"isvProdId" cbor:"6,keyasint"`

	// IsvSvn is the signer assigned security version number.
	IsvSvn uint16 `json:"isvSvn" cbor:"7,keyasint"`
}

// ExtractIdentity parses the identity fields out of a raw attestation report.
// It errors with ErrMalformedReport if data has not the size of a Report.
//
// ExtractIdentity is a pure transformation. It shall only be fed reports that
// have already been cryptographically verified.
func ExtractIdentity(data []byte) (PeerIdentity, error) {
	var rv PeerIdentity
	if ReportSize != len(data) {
		return rv, newFlagError(ErrMalformedReport, "invalid report size %d, need %d", len(data), ReportSize)
	}
	copy(rv.CpuSvn[:], data[offCpuSvn:])
	rv.MiscSelect = binary.LittleEndian.Uint32(data[offMiscSelect:])
	rv.Attributes.Flags = binary.LittleEndian.Uint64(data[offAttributes:])
	rv.Attributes.Xfrm = binary.LittleEndian.Uint64(data[offAttributes+8:])
	copy(rv.MrEnclave[:], data[offMrEnclave:])
	copy(rv.MrSigner[:], data[offMrSigner:])
	rv.IsvProdId = binary.LittleEndian.Uint16(data[offIsvProdId:])
	rv.IsvSvn = binary.LittleEndian.Uint16(data[offIsvSvn:])
	return rv, nil
}

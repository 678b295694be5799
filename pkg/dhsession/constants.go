package dhsession

const (
	// PubKeySize is the byte length of the exchanged ephemeral public keys,
	// X and Y coordinates in little-endian.
	PubKeySize = 64

	// MacSize is the byte length of handshake message MACs (AES-128-CMAC).
	MacSize = 16

	// SessionKeySize is the byte length of the derived session key (AEK).
	SessionKeySize = 16

	// ReportBodySize is the byte length of the attested part of a report.
	ReportBodySize = 384

	// ReportKeyIdSize is the byte length of the report key id.
	ReportKeyIdSize = 32

	// ReportSize is the byte length of a full attestation report,
	// body plus key id plus MAC.
	ReportSize = ReportBodySize + ReportKeyIdSize + MacSize

	// ReportDataSize is the byte length of the caller data bound to a report.
	ReportDataSize = 64

	// TargetInfoSize is the byte length of a report target locator.
	TargetInfoSize = 512

	// MaxPropSize bounds the Message3 additional property blob, so that a
	// maximal Message3 still fits one uint16 length framed transport frame.
	MaxPropSize = 0xFFFF - (MacSize + ReportSize + 4)
)

// Report body layout offsets, all multi-byte fields little-endian.
const (
	offCpuSvn     = 0   // [16]byte
	offMiscSelect = 16  // uint32
	offAttributes = 48  // flags uint64 + xfrm uint64
	offMrEnclave  = 64  // [32]byte
	offMrSigner   = 128 // [32]byte
	offIsvProdId  = 256 // uint16
	offIsvSvn     = 258 // uint16
	offReportData = 320 // [64]byte
)

// Target locator layout offsets.
const (
	offTargetMrEnclave  = 0  // [32]byte
	offTargetAttributes = 32 // flags uint64 + xfrm uint64
	offTargetMiscSelect = 48 // uint32
)

package dhsession

import (
	"encoding/binary"
)

// Report is a fixed size attestation report. The first ReportBodySize bytes are
// the attested body, followed by the report key id and the report MAC.
//
// The handshake engine treats the body as opaque except for the bound report
// data used for transcript binding. Cryptographic verification of a Report is
// delegated to the Reporter collaborator.
type Report [ReportSize]byte

// ReportData is the caller data bound to a Report at generation time.
type ReportData [ReportDataSize]byte

// TargetInfo locates the enclave a Report shall be generated for. It is opaque
// to the handshake engine.
type TargetInfo [TargetInfoSize]byte

// Body returns the attested region of the Report (body and key id).
func (self *Report) Body() []byte {
	return self[:ReportBodySize+ReportKeyIdSize]
}

// Data returns a copy of the report bound data.
func (self *Report) Data() ReportData {
	var rv ReportData
	copy(rv[:], self[offReportData:offReportData+ReportDataSize])
	return rv
}

// SetData stores data in the report bound data field.
func (self *Report) SetData(data ReportData) {
	copy(self[offReportData:offReportData+ReportDataSize], data[:])
}

// Tag returns the report MAC region.
func (self *Report) Tag() []byte {
	return self[ReportBodySize+ReportKeyIdSize:]
}

// KeyId returns the report key id region.
func (self *Report) KeyId() []byte {
	return self[ReportBodySize : ReportBodySize+ReportKeyIdSize]
}

// ComposeReportBody fills the identity fields plus the bound data of a Report
// body. The key id and MAC regions are left zero, they are the responsibility
// of the report issuer.
func ComposeReportBody(id PeerIdentity, data ReportData) Report {
	var rv Report
	copy(rv[offCpuSvn:], id.CpuSvn[:])
	binary.LittleEndian.PutUint32(rv[offMiscSelect:], id.MiscSelect)
	binary.LittleEndian.PutUint64(rv[offAttributes:], id.Attributes.Flags)
	binary.LittleEndian.PutUint64(rv[offAttributes+8:], id.Attributes.Xfrm)
	copy(rv[offMrEnclave:], id.MrEnclave[:])
	copy(rv[offMrSigner:], id.MrSigner[:])
	binary.LittleEndian.PutUint16(rv[offIsvProdId:], id.IsvProdId)
	binary.LittleEndian.PutUint16(rv[offIsvSvn:], id.IsvSvn)
	rv.SetData(data)
	return rv
}

// TargetInfoFromReport builds the locator of the enclave described by report,
// allowing the report receiver to be targeted by a reply report.
func TargetInfoFromReport(report *Report) TargetInfo {
	var rv TargetInfo
	copy(rv[offTargetMrEnclave:], report[offMrEnclave:offMrEnclave+32])
	copy(rv[offTargetAttributes:], report[offAttributes:offAttributes+16])
	copy(rv[offTargetMiscSelect:], report[offMiscSelect:offMiscSelect+4])
	return rv
}

// ComposeTargetInfo builds the locator of an enclave from its identity fields.
func ComposeTargetInfo(mrenclave [32]byte, attrs Attributes, miscselect uint32) TargetInfo {
	var rv TargetInfo
	copy(rv[offTargetMrEnclave:], mrenclave[:])
	binary.LittleEndian.PutUint64(rv[offTargetAttributes:], attrs.Flags)
	binary.LittleEndian.PutUint64(rv[offTargetAttributes+8:], attrs.Xfrm)
	binary.LittleEndian.PutUint32(rv[offTargetMiscSelect:], miscselect)
	return rv
}

// MrEnclave returns the code measurement stored in a target locator.
func (self *TargetInfo) MrEnclave() [32]byte {
	var rv [32]byte
	copy(rv[:], self[offTargetMrEnclave:offTargetMrEnclave+32])
	return rv
}

// Reporter produces and verifies hardware attestation reports for the local
// platform. It stands for the platform identity service, out of scope of the
// handshake protocol itself.
type Reporter interface {
	// TargetInfo returns the locator of the local enclave, allowing a remote
	// party to generate a Report this Reporter can verify.
	TargetInfo() TargetInfo

	// GenerateReport produces a report binding data to the local platform
	// identity, verifiable by the enclave designated by target.
	GenerateReport(target *TargetInfo, data ReportData) (Report, error)

	// VerifyReport checks that report was genuinely produced for the local
	// enclave and returns the bound data. It errors if the report is not
	// authentic.
	VerifyReport(report *Report) (ReportData, error)
}

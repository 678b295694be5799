// Package enclave simulates a local attestation platform.
//
// A Platform stands for one machine holding a secret report key. Enclaves
// created on the same Platform can generate attestation reports for each other
// and verify them, which is exactly the trust model the dhsession handshake
// relies on. Enclaves of two distinct Platforms can not attest each other.
//
// The simulation exists for tests and demo programs; production deployments
// replace it with the hardware identity service of the execution environment.
package enclave

import (
	"crypto/sha256"
	"io"

	"code.attlink.org/golang/internal/algos"
	"code.attlink.org/golang/internal/utils"
	"code.attlink.org/golang/pkg/dhsession"
)

// Platform simulates a machine wide report key holder.
type Platform struct {
	key    [algos.MacKeySize]byte
	cpuSvn [16]byte
}

// NewPlatform creates a Platform with a fresh report key read from rnd.
func NewPlatform(rnd io.Reader) (*Platform, error) {
	rv := &Platform{}
	_, err := io.ReadFull(rnd, rv.key[:])
	if nil != err {
		return nil, wrapError(err, "failed platform key generation")
	}
	_, err = io.ReadFull(rnd, rv.cpuSvn[:])
	if nil != err {
		return nil, wrapError(err, "failed platform svn generation")
	}
	return rv, nil
}

// Params configures an Enclave.
type Params struct {
	// Name seeds the enclave measurements.
	Name string

	// IsvProdId is the signer assigned product id.
	IsvProdId uint16

	// IsvSvn is the signer assigned security version number.
	IsvSvn uint16

	// Debug marks the enclave as debuggable.
	Debug bool
}

// Enclave simulates one isolated execution context hosted on a Platform.
// It implements dhsession.Reporter.
type Enclave struct {
	platform *Platform
	identity dhsession.PeerIdentity
}

// NewEnclave creates an Enclave on the Platform. Measurements derive
// deterministically from params.Name.
func (self *Platform) NewEnclave(params Params) (*Enclave, error) {
	if "" == params.Name {
		return nil, newError("missing enclave name")
	}

	identity := dhsession.PeerIdentity{
		CpuSvn:    self.cpuSvn,
		MrEnclave: sha256.Sum256([]byte("attlink.enclave:" + params.Name)),
		MrSigner:  sha256.Sum256([]byte("attlink.signer:" + params.Name)),
		IsvProdId: params.IsvProdId,
		IsvSvn:    params.IsvSvn,
	}
	identity.Attributes.Flags = dhsession.AttrInitialized | dhsession.AttrMode64
	if params.Debug {
		identity.Attributes.Flags |= dhsession.AttrDebug
	}

	return &Enclave{platform: self, identity: identity}, nil
}

// Identity returns the enclave own identity record.
func (self *Enclave) Identity() dhsession.PeerIdentity {
	return self.identity
}

// TargetInfo returns the locator a remote party shall use to generate a report
// verifiable by this Enclave.
func (self *Enclave) TargetInfo() dhsession.TargetInfo {
	return dhsession.ComposeTargetInfo(self.identity.MrEnclave, self.identity.Attributes, self.identity.MiscSelect)
}

// GenerateReport produces a report binding data to this Enclave identity,
// MACed with the report key of the enclave designated by target.
func (self *Enclave) GenerateReport(target *dhsession.TargetInfo, data dhsession.ReportData) (dhsession.Report, error) {
	report := dhsession.ComposeReportBody(self.identity, data)
	if nil == target {
		return report, newError("nil target")
	}

	mrenclave := target.MrEnclave()
	key, err := self.platform.reportKey(mrenclave[:])
	if nil != err {
		return report, wrapError(err, "failed report key derivation")
	}
	tag, err := algos.Cmac(key, report.Body())
	utils.Wipe(key)
	if nil != err {
		return report, wrapError(err, "failed report MAC")
	}
	copy(report.Tag(), tag)
	return report, nil
}

// VerifyReport checks that report was generated for this Enclave on this
// Platform and returns the bound data.
func (self *Enclave) VerifyReport(report *dhsession.Report) (dhsession.ReportData, error) {
	var data dhsession.ReportData
	if nil == report {
		return data, newError("nil report")
	}

	key, err := self.platform.reportKey(self.identity.MrEnclave[:])
	if nil != err {
		return data, wrapError(err, "failed report key derivation")
	}
	ok, err := algos.CmacVerify(key, report.Body(), report.Tag())
	utils.Wipe(key)
	if nil != err {
		return data, wrapError(err, "failed report MAC verification")
	}
	if !ok {
		return data, newError("report was not generated for this enclave")
	}
	return report.Data(), nil
}

var _ dhsession.Reporter = &Enclave{}

// reportKey derives the report key of the enclave measured by mrenclave.
func (self *Platform) reportKey(mrenclave []byte) ([]byte, error) {
	return algos.Cmac(self.key[:], mrenclave)
}

package dhsession

import (
	"crypto/ecdh"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"code.attlink.org/golang/internal/algos"
	"code.attlink.org/golang/internal/utils"
)

// GenerateMsg1 emits the Responder opening message, its ephemeral public key
// plus the locator of its enclave. Requires RoleResponder and StageInitialized,
// advances the Session to StageAwaitingMsg2.
func (self *Session) GenerateMsg1() (*Message1, error) {
	if RoleResponder != self.role || StageInitialized != self.stage {
		return nil, newFlagError(ErrOrderingViolation,
			"GenerateMsg1 needs a Responder session in stage Initialized, have %s/%s", self.role, self.stage)
	}

	err := self.generateKeypair()
	if nil != err {
		return nil, self.abort(wrapFlagError(err, ErrCryptoFailure, "failed ephemeral key generation"))
	}

	msg1 := &Message1{PubKey: self.pubkey, Target: self.cfg.Reporter.TargetInfo()}
	self.stage = StageAwaitingMsg2
	return msg1, nil
}

// ProcessMsg1 consumes the Responder opening message and emits Message2. It
// generates the Initiator ephemeral key pair, computes the shared secret,
// requests an attestation report bound to both public keys and MACs the
// transcript. Requires RoleInitiator and StageInitialized, advances the
// Session to StageAwaitingMsg3.
func (self *Session) ProcessMsg1(msg1 *Message1) (*Message2, error) {
	if RoleInitiator != self.role || StageInitialized != self.stage {
		return nil, newFlagError(ErrOrderingViolation,
			"ProcessMsg1 needs an Initiator session in stage Initialized, have %s/%s", self.role, self.stage)
	}
	if nil == msg1 {
		return nil, newError("nil msg1")
	}

	peerkey, err := self.cfg.Curve.DecodePublicKey(msg1.PubKey[:])
	if nil != err {
		return nil, self.abort(wrapFlagError(err, ErrCryptoFailure, "invalid Responder public key"))
	}
	self.peerkey = msg1.PubKey

	err = self.generateKeypair()
	if nil != err {
		return nil, self.abort(wrapFlagError(err, ErrCryptoFailure, "failed ephemeral key generation"))
	}

	err = self.deriveSessionKeys(peerkey)
	if nil != err {
		return nil, self.abort(err)
	}

	report, err := self.cfg.Reporter.GenerateReport(&msg1.Target, self.bindingData())
	if nil != err {
		return nil, self.abort(wrapFlagError(err, ErrAttestationFailure, "failed report generation"))
	}

	mac, err := self.macMsg2(&report)
	if nil != err {
		return nil, self.abort(err)
	}

	msg2 := &Message2{PubKey: self.pubkey, Report: report, Mac: mac}
	self.stage = StageAwaitingMsg3
	return msg2, nil
}

// ProcessMsg2 consumes the Initiator Message2 and emits Message3 along with the
// derived session key and the verified Initiator identity. prop is an opaque
// blob forwarded to the Initiator inside Message3; it may be nil. Requires
// RoleResponder and StageAwaitingMsg2, advances the Session to StageCompleted.
func (self *Session) ProcessMsg2(msg2 *Message2, prop []byte) (*Message3, SessionKey, PeerIdentity, error) {
	var aek SessionKey
	var peer PeerIdentity

	if RoleResponder != self.role || StageAwaitingMsg2 != self.stage {
		return nil, aek, peer, newFlagError(ErrOrderingViolation,
			"ProcessMsg2 needs a Responder session in stage AwaitingMsg2, have %s/%s", self.role, self.stage)
	}
	if nil == msg2 {
		return nil, aek, peer, newError("nil msg2")
	}
	if len(prop) > MaxPropSize {
		return nil, aek, peer, newError("additional property size %d over limit %d", len(prop), MaxPropSize)
	}

	peerkey, err := self.cfg.Curve.DecodePublicKey(msg2.PubKey[:])
	if nil != err {
		return nil, aek, peer, self.abort(wrapFlagError(err, ErrCryptoFailure, "invalid Initiator public key"))
	}
	self.peerkey = msg2.PubKey

	err = self.deriveSessionKeys(peerkey)
	if nil != err {
		return nil, aek, peer, self.abort(err)
	}

	// authenticate the transcript before trusting anything inside msg2
	want, err := self.macMsg2(&msg2.Report)
	if nil != err {
		return nil, aek, peer, self.abort(err)
	}
	if !macEqual(&want, &msg2.Mac) {
		return nil, aek, peer, self.abort(newFlagError(ErrAuthenticationFailure, "Message2 MAC mismatch"))
	}

	peer, err = self.verifyReport(&msg2.Report)
	if nil != err {
		return nil, aek, peer, self.abort(err)
	}

	// reply report, targeted at the Initiator enclave described by its report
	target := TargetInfoFromReport(&msg2.Report)
	report, err := self.cfg.Reporter.GenerateReport(&target, self.bindingData())
	if nil != err {
		return nil, aek, peer, self.abort(wrapFlagError(err, ErrAttestationFailure, "failed report generation"))
	}

	mac, err := self.macMsg3(&report, prop)
	if nil != err {
		return nil, aek, peer, self.abort(err)
	}
	msg3 := &Message3{Mac: mac, Report: report, AdditionalProp: prop}

	copy(aek[:], self.aek)
	self.stage = StageCompleted
	self.wipe()
	return msg3, aek, peer, nil
}

// ProcessMsg3 consumes the Responder closing message and returns the derived
// session key and the verified Responder identity. Requires RoleInitiator and
// StageAwaitingMsg3, advances the Session to StageCompleted.
func (self *Session) ProcessMsg3(msg3 *Message3) (SessionKey, PeerIdentity, error) {
	var aek SessionKey
	var peer PeerIdentity

	if RoleInitiator != self.role || StageAwaitingMsg3 != self.stage {
		return aek, peer, newFlagError(ErrOrderingViolation,
			"ProcessMsg3 needs an Initiator session in stage AwaitingMsg3, have %s/%s", self.role, self.stage)
	}
	if nil == msg3 {
		return aek, peer, newError("nil msg3")
	}

	want, err := self.macMsg3(&msg3.Report, msg3.AdditionalProp)
	if nil != err {
		return aek, peer, self.abort(err)
	}
	if !macEqual(&want, &msg3.Mac) {
		return aek, peer, self.abort(newFlagError(ErrAuthenticationFailure, "Message3 MAC mismatch"))
	}

	peer, err = self.verifyReport(&msg3.Report)
	if nil != err {
		return aek, peer, self.abort(err)
	}

	copy(aek[:], self.aek)
	self.stage = StageCompleted
	self.wipe()
	return aek, peer, nil
}

// generateKeypair produces the session ephemeral key pair and its wire encoding.
func (self *Session) generateKeypair() error {
	key, err := self.cfg.Curve.GenerateKeypair(self.cfg.Rand)
	if nil != err {
		return err
	}
	enc, err := self.cfg.Curve.EncodePublicKey(key.PublicKey())
	if nil != err {
		return err
	}
	self.key = key
	copy(self.pubkey[:], enc)
	return nil
}

// deriveSessionKeys computes the shared secret with peerkey and derives the
// handshake MAC key and the session key. The secret is wiped before returning.
func (self *Session) deriveSessionKeys(peerkey *ecdh.PublicKey) error {
	secret, err := self.cfg.Curve.SharedSecret(self.key, peerkey)
	if nil != err {
		return wrapFlagError(err, ErrCryptoFailure, "failed shared secret computation")
	}

	smk, err := algos.DeriveKey(secret, algos.LABEL_SMK)
	if nil != err {
		utils.Wipe(secret)
		return wrapFlagError(err, ErrCryptoFailure, "failed SMK derivation")
	}
	aek, err := algos.DeriveKey(secret, algos.LABEL_AEK)
	utils.Wipe(secret)
	if nil != err {
		utils.Wipe(smk)
		return wrapFlagError(err, ErrCryptoFailure, "failed AEK derivation")
	}
	self.smk = smk
	self.aek = aek
	return nil
}

// bindingData is the report bound data for reports emitted by this session
// role: SHA-256 over the two public keys, own key first.
func (self *Session) bindingData() ReportData {
	var rv ReportData
	h := sha256.New()
	h.Write(self.pubkey[:])
	h.Write(self.peerkey[:])
	copy(rv[:], h.Sum(nil))
	return rv
}

// peerBindingData is the expected bound data of reports received from the peer.
func (self *Session) peerBindingData() ReportData {
	var rv ReportData
	h := sha256.New()
	h.Write(self.peerkey[:])
	h.Write(self.pubkey[:])
	copy(rv[:], h.Sum(nil))
	return rv
}

// verifyReport delegates report authenticity to the Reporter, checks the
// transcript binding and extracts the peer identity.
func (self *Session) verifyReport(report *Report) (PeerIdentity, error) {
	var peer PeerIdentity

	data, err := self.cfg.Reporter.VerifyReport(report)
	if nil != err {
		return peer, wrapFlagError(err, ErrAttestationFailure, "failed report verification")
	}
	want := self.peerBindingData()
	if data != want {
		return peer, newFlagError(ErrAttestationFailure, "report bound data does not match the session transcript")
	}

	peer, err = ExtractIdentity(report[:])
	if nil != err {
		return peer, wrapError(err, "failed identity extraction")
	}
	return peer, nil
}

// macMsg2 computes the Message2 transcript MAC:
// CMAC(SMK, initiator_pub || responder_pub || report).
func (self *Session) macMsg2(report *Report) (Mac, error) {
	var rv Mac
	initkey, respkey := self.orderedKeys()
	transcript := make([]byte, 0, 2*PubKeySize+ReportSize)
	transcript = append(transcript, initkey[:]...)
	transcript = append(transcript, respkey[:]...)
	transcript = append(transcript, report[:]...)
	tag, err := algos.Cmac(self.smk, transcript)
	if nil != err {
		return rv, wrapFlagError(err, ErrCryptoFailure, "failed transcript MAC")
	}
	copy(rv[:], tag)
	return rv, nil
}

// macMsg3 computes the Message3 transcript MAC:
// CMAC(SMK, initiator_pub || responder_pub || report || le32(len(prop)) || prop).
func (self *Session) macMsg3(report *Report, prop []byte) (Mac, error) {
	var rv Mac
	initkey, respkey := self.orderedKeys()
	transcript := make([]byte, 0, 2*PubKeySize+ReportSize+4+len(prop))
	transcript = append(transcript, initkey[:]...)
	transcript = append(transcript, respkey[:]...)
	transcript = append(transcript, report[:]...)
	transcript = binary.LittleEndian.AppendUint32(transcript, uint32(len(prop)))
	transcript = append(transcript, prop...)
	tag, err := algos.Cmac(self.smk, transcript)
	if nil != err {
		return rv, wrapFlagError(err, ErrCryptoFailure, "failed transcript MAC")
	}
	copy(rv[:], tag)
	return rv, nil
}

func macEqual(a, b *Mac) bool {
	return 1 == subtle.ConstantTimeCompare(a[:], b[:])
}

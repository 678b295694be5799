package dhsession

import (
	"crypto/ecdh"
	"crypto/rand"
	"io"

	"code.attlink.org/golang/internal/algos"
	"code.attlink.org/golang/internal/utils"
)

// Role determines the party a Session establishes for. It is fixed for the
// session entire lifetime.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// String implements fmt.Stringer.
func (self Role) String() string {
	switch self {
	case RoleInitiator:
		return "Initiator"
	case RoleResponder:
		return "Responder"
	default:
		return "Role(invalid)"
	}
}

// Stage is the monotonically advancing marker of a Session.
type Stage int

const (
	StageInitialized Stage = iota
	StageAwaitingMsg2
	StageAwaitingMsg3
	StageCompleted
	StageAborted
)

// String implements fmt.Stringer.
func (self Stage) String() string {
	switch self {
	case StageInitialized:
		return "Initialized"
	case StageAwaitingMsg2:
		return "AwaitingMsg2"
	case StageAwaitingMsg3:
		return "AwaitingMsg3"
	case StageCompleted:
		return "Completed"
	case StageAborted:
		return "Aborted"
	default:
		return "Stage(invalid)"
	}
}

// SessionKey is the derived session key (AEK). The holder shall wipe it when the
// session it protects ends.
type SessionKey [SessionKeySize]byte

// Wipe zeroes the SessionKey.
func (self *SessionKey) Wipe() {
	utils.Wipe(self[:])
}

// Config holds Session collaborators.
type Config struct {
	// Curve is the key exchange curve. Zero value selects P256.
	Curve algos.Curve

	// Rand is the randomness source for ephemeral key generation.
	// nil selects crypto/rand.Reader.
	Rand io.Reader

	// Reporter produces and verifies the platform attestation reports.
	Reporter Reporter
}

func (self *Config) setDefaults() error {
	if nil == self.Curve.Curve {
		curve, err := algos.GetCurve(algos.CURVE_P256)
		if nil != err {
			return wrapError(err, "failed loading default curve")
		}
		self.Curve = curve
	}
	if PubKeySize != self.Curve.PublicKeyLen() {
		return newError("curve %s public keys do not fit the %d byte wire encoding", self.Curve.Name(), PubKeySize)
	}
	if nil == self.Rand {
		self.Rand = rand.Reader
	}
	if nil == self.Reporter {
		return newError("missing Reporter")
	}
	return nil
}

// Session holds the state of one handshake attempt for one party.
//
// A Session is single owner. Its operations mutate stage and key material that
// the next operation depends on, concurrent calls on the same Session must be
// prevented by the caller. A Session must never be reused across two handshake
// attempts: once Completed or Aborted, create a new one.
type Session struct {
	cfg     Config
	role    Role
	stage   Stage
	key     *ecdh.PrivateKey
	pubkey  PublicKey // own ephemeral public key, wire form
	peerkey PublicKey // peer ephemeral public key, wire form
	smk     []byte    // handshake MAC key
	aek     []byte    // derived session key, held in between ProcessMsg1 and ProcessMsg3
}

// Init allocates a fresh Session bound to role. The ephemeral key pair is
// generated by the first message operation of the role.
func Init(role Role, cfg Config) (*Session, error) {
	if RoleInitiator != role && RoleResponder != role {
		return nil, newError("invalid role %d", int(role))
	}
	err := cfg.setDefaults()
	if nil != err {
		return nil, wrapError(err, "invalid config")
	}
	return &Session{cfg: cfg, role: role, stage: StageInitialized}, nil
}

// Role returns the Session role.
func (self *Session) Role() Role {
	return self.role
}

// Stage returns the current Session stage.
func (self *Session) Stage() Stage {
	return self.stage
}

// Close wipes the Session key material and renders the Session unusable.
// Closing an already Completed or Aborted Session is a no-op.
func (self *Session) Close() error {
	if StageCompleted != self.stage {
		self.stage = StageAborted
	}
	self.wipe()
	return nil
}

// abort wipes key material, transitions to StageAborted and passes err through.
func (self *Session) abort(err error) error {
	self.stage = StageAborted
	self.wipe()
	return err
}

func (self *Session) wipe() {
	self.key = nil // ecdh private keys do not expose their buffer, drop the reference
	utils.Wipe(self.smk)
	self.smk = nil
	utils.Wipe(self.aek)
	self.aek = nil
}

// orderedKeys returns the two ephemeral public keys in transcript order,
// Initiator key first.
func (self *Session) orderedKeys() (initkey, respkey *PublicKey) {
	if RoleInitiator == self.role {
		return &self.pubkey, &self.peerkey
	}
	return &self.peerkey, &self.pubkey
}

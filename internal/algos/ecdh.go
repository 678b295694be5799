package algos

import (
	"crypto/ecdh"
	"io"
	"math/rand/v2"

	"code.attlink.org/golang/internal/utils"
)

const (
	CURVE_P256 = "P256"
	CURVE_P384 = "P384"
	CURVE_P521 = "P521"
)

// Curve embeds ecdh.Curve and adds methods that simplify usage.
//
// On top of the standard big-endian SEC1 encodings, Curve provides the little-endian
// coordinate encoding used by enclave platforms to exchange public keys and to feed
// Diffie-Hellmann shared secrets into key derivation.
type Curve struct {
	ecdh.Curve
	name        string
	privkeySize int
	pubkeySize  int
	coordSize   int
	dhsecSize   int
}

// Name returns Name of Curve
func (self Curve) Name() string {
	return self.name
}

// PrivateKeyLen returns byte length of Curve PrivateKey
func (self Curve) PrivateKeyLen() int {
	return self.privkeySize
}

// PublicKeyLen returns byte length of the little-endian coordinate form of Curve PublicKey
func (self Curve) PublicKeyLen() int {
	return 2 * self.coordSize
}

// DHLen returns byte length of Diffie-Hellmann shared secret
func (self Curve) DHLen() int {
	return self.dhsecSize
}

// GenerateKeypair generates a fresh ephemeral Keypair reading randomness from rnd.
func (self Curve) GenerateKeypair(rnd io.Reader) (*ecdh.PrivateKey, error) {
	key, err := self.Curve.GenerateKey(rnd)
	return key, wrapError(err, "failed Curve %s key generation", self.name) // nil if err is nil
}

// EncodePublicKey encodes pubkey coordinates as X || Y with each coordinate in little-endian.
// It errors if the Curve has no uncompressed coordinate form (eg X25519).
func (self Curve) EncodePublicKey(pubkey *ecdh.PublicKey) ([]byte, error) {
	if nil == pubkey {
		return nil, newError("nil pubkey")
	}
	raw := pubkey.Bytes()
	csz := self.coordSize
	if len(raw) != 1+2*csz || 0x04 != raw[0] {
		return nil, newError("Curve %s public key has no uncompressed coordinate form", self.name)
	}
	rv := make([]byte, 2*csz)
	reverseInto(rv[:csz], raw[1:1+csz])
	reverseInto(rv[csz:], raw[1+csz:])
	return rv, nil
}

// DecodePublicKey rebuilds an ecdh.PublicKey from the little-endian coordinate encoding
// produced by EncodePublicKey. It errors if data has the wrong size or does not encode
// a valid curve point.
func (self Curve) DecodePublicKey(data []byte) (*ecdh.PublicKey, error) {
	csz := self.coordSize
	if len(data) != 2*csz {
		return nil, newError("invalid public key size %d, Curve %s needs %d", len(data), self.name, 2*csz)
	}
	raw := make([]byte, 1+2*csz)
	raw[0] = 0x04
	reverseInto(raw[1:1+csz], data[:csz])
	reverseInto(raw[1+csz:], data[csz:])
	pubkey, err := self.Curve.NewPublicKey(raw)
	return pubkey, wrapError(err, "data does not encode a valid Curve %s point", self.name) // nil if err is nil
}

// SharedSecret computes the Diffie-Hellmann shared secret in between key and pubkey.
// The returned secret is the x coordinate in little-endian, ready for key derivation.
func (self Curve) SharedSecret(key *ecdh.PrivateKey, pubkey *ecdh.PublicKey) ([]byte, error) {
	if nil == key {
		return nil, newError("nil key")
	}
	secret, err := key.ECDH(pubkey)
	if nil != err {
		return nil, wrapError(err, "failed ECDH")
	}
	reverse(secret)
	return secret, nil
}

func (self *Curve) init() error {
	if nil == self || nil == self.Curve {
		return newError("can not initialize nil curve")
	}

	// rnd is just used to determine Curve outputs size, hence it does not need to be crypto rand.Reader
	rnd := rand.NewChaCha8([32]byte{})

	curve := self.Curve
	pk1, err := curve.GenerateKey(rnd)
	if nil != err {
		return wrapError(err, "failed generating pk1")
	}
	self.privkeySize = len(pk1.Bytes())
	self.pubkeySize = len(pk1.PublicKey().Bytes())
	if 0 == self.pubkeySize%2 {
		return newError("curve has no uncompressed coordinate form")
	}
	self.coordSize = (self.pubkeySize - 1) / 2

	pk2, err := curve.GenerateKey(rnd)
	if nil != err {
		return wrapError(err, "failed generating pk2")
	}

	dhsec, err := pk1.ECDH(pk2.PublicKey())
	if nil != err {
		return wrapError(err, "failed generating dhsec")
	}
	self.dhsecSize = len(dhsec)

	return nil
}

func reverse(buf []byte) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

func reverseInto(dst, src []byte) {
	last := len(src) - 1
	for pos := range src {
		dst[pos] = src[last-pos]
	}
}

var curveRegistry *utils.Registry[string, Curve]

// MustRegisterCurve adds curve to the Curve registry. It panics if name is already in use or curve is invalid.
func MustRegisterCurve(name string, curve ecdh.Curve) {
	err := RegisterCurve(name, curve)
	if nil != err {
		panic(err)
	}
}

// RegisterCurve adds curve to the Curve registry. It errors if name is already in use or curve is invalid.
func RegisterCurve(name string, curve ecdh.Curve) error {
	regcurve := Curve{Curve: curve, name: name}
	err := regcurve.init()
	if nil != err {
		return wrapError(err, "failed initializing Curve %s", name)
	}
	return wrapError(
		utils.RegistrySet(curveRegistry, name, regcurve),
		"failed registering Curve algorithm, %s",
		name,
	)
}

// GetCurve loads Curve implementation from the registry. It errors if no curve was registered with name.
func GetCurve(name string) (Curve, error) {
	curve, found := utils.RegistryGet(curveRegistry, name)
	if !found {
		return curve, newError("unsupported Curve algorithm, %s", name)
	}
	return curve, nil
}

// ListCurves returns a slice containing the names of the registered elliptic curves.
func ListCurves() []string {
	curveIdx := utils.RegistryEntries(curveRegistry)
	rv := make([]string, 0, len(curveIdx))
	for name := range curveIdx {
		rv = append(rv, name)
	}
	return rv
}

func init() {
	curveRegistry = utils.NewRegistry[string, Curve]()
	MustRegisterCurve(CURVE_P256, ecdh.P256())
	MustRegisterCurve(CURVE_P384, ecdh.P384())
	MustRegisterCurve(CURVE_P521, ecdh.P521())
}

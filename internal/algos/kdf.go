package algos

import (
	"code.attlink.org/golang/internal/utils"
)

const (
	// DerivedKeySize is the byte length of keys produced by DeriveKey.
	DerivedKeySize = 16
)

// Key derivation labels used by the session establishment protocol.
const (
	LABEL_SMK = "SMK" // handshake message authentication key
	LABEL_AEK = "AEK" // derived session key
)

// DeriveKey derives a 128 bit key from a Diffie-Hellmann shared secret, using the
// CMAC construction of the enclave platform SDK:
//
//	key0    = CMAC(0^16, secret)
//	derived = CMAC(key0, 0x01 || label || 0x00 || 0x80 || 0x00)
//
// secret shall be the little-endian shared secret produced by Curve.SharedSecret.
func DeriveKey(secret []byte, label string) ([]byte, error) {
	if 0 == len(secret) {
		return nil, newError("empty secret")
	}
	if 0 == len(label) {
		return nil, newError("empty label")
	}

	var zero [MacKeySize]byte
	key0, err := Cmac(zero[:], secret)
	if nil != err {
		return nil, wrapError(err, "failed key0 derivation")
	}

	msg := make([]byte, 0, len(label)+4)
	msg = append(msg, 0x01)
	msg = append(msg, label...)
	msg = append(msg, 0x00, 0x80, 0x00)

	derived, err := Cmac(key0, msg)
	utils.Wipe(key0)
	if nil != err {
		return nil, wrapError(err, "failed %s derivation", label)
	}

	return derived, nil
}

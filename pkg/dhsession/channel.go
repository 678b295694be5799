package dhsession

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

const (
	channelNonceSize = 12

	// channelMaxSeq is the last usable message counter of a TransportCipher.
	channelMaxSeq = 0xFFFF_FFFF_FFFF_FFFE
)

// direction bytes mixed into the cipher nonces, one per channel direction.
const (
	dirInitiatorToResponder = byte(0x00)
	dirResponderToInitiator = byte(0x01)
)

// TransportCipher protects one direction of the channel established over the
// derived session key. Messages are sealed with AES-128-GCM under a nonce made
// of the direction byte and a strictly increasing counter; both ends must
// process messages in order, which the protocol transport model guarantees.
type TransportCipher struct {
	aead cipher.AEAD
	dir  byte
	seq  uint64
}

// EncryptWithAd seals plaintext. The ad parameter maybe nil, it corresponds to
// AEAD "additional data" and is authenticated alongside plaintext.
func (self *TransportCipher) EncryptWithAd(ad, plaintext []byte) ([]byte, error) {
	if nil == self.aead {
		return nil, newError("missing cipher key")
	}
	if self.seq > channelMaxSeq {
		return nil, newError("channel message counter exhausted")
	}
	var nonce [channelNonceSize]byte
	nonce[0] = self.dir
	binary.LittleEndian.PutUint64(nonce[4:], self.seq)
	self.seq += 1
	return self.aead.Seal(nil, nonce[:], plaintext, ad), nil
}

// DecryptWithAd opens ciphertext. ad shall match the ad used when sealing.
func (self *TransportCipher) DecryptWithAd(ad, ciphertext []byte) ([]byte, error) {
	if nil == self.aead {
		return nil, newError("missing cipher key")
	}
	if self.seq > channelMaxSeq {
		return nil, newError("channel message counter exhausted")
	}
	var nonce [channelNonceSize]byte
	nonce[0] = self.dir
	binary.LittleEndian.PutUint64(nonce[4:], self.seq)
	plaintext, err := self.aead.Open(nil, nonce[:], ciphertext, ad)
	if nil != err {
		return nil, wrapFlagError(err, ErrAuthenticationFailure, "failed channel message decryption")
	}
	self.seq += 1
	return plaintext, nil
}

// TransportCipherPair holds the two TransportCipher of an established channel.
type TransportCipherPair struct {
	ciphers [2]TransportCipher
}

// NewTransportCipherPair initializes the channel ciphers over the derived
// session key. Both parties call it with the same key and their own role, the
// resulting pairs are mirrored.
func NewTransportCipherPair(key SessionKey, role Role) (*TransportCipherPair, error) {
	if RoleInitiator != role && RoleResponder != role {
		return nil, newError("invalid role %d", int(role))
	}
	block, err := aes.NewCipher(key[:])
	if nil != err {
		return nil, wrapFlagError(err, ErrCryptoFailure, "failed AES cipher initialization")
	}
	aead, err := cipher.NewGCM(block)
	if nil != err {
		return nil, wrapFlagError(err, ErrCryptoFailure, "failed GCM initialization")
	}

	rv := &TransportCipherPair{}
	edir, ddir := dirInitiatorToResponder, dirResponderToInitiator
	if RoleResponder == role {
		edir, ddir = ddir, edir
	}
	rv.ciphers[0] = TransportCipher{aead: aead, dir: edir}
	rv.ciphers[1] = TransportCipher{aead: aead, dir: ddir}
	return rv, nil
}

// Encryptor returns the TransportCipher protecting the outgoing direction.
func (self *TransportCipherPair) Encryptor() *TransportCipher {
	return &self.ciphers[0]
}

// Decryptor returns the TransportCipher protecting the incoming direction.
func (self *TransportCipherPair) Decryptor() *TransportCipher {
	return &self.ciphers[1]
}

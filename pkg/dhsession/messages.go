package dhsession

import (
	"encoding/binary"
)

// PublicKey is the wire form of an ephemeral public key, X and Y coordinates in
// little-endian.
type PublicKey [PubKeySize]byte

// Mac is a handshake message authentication tag.
type Mac [MacSize]byte

// Message1 opens the handshake. The Responder sends its ephemeral public key
// plus the locator the Initiator shall target its attestation report at.
type Message1 struct {
	PubKey PublicKey
	Target TargetInfo
}

// Message1Size is the wire size of Message1.
const Message1Size = PubKeySize + TargetInfoSize

// Marshal returns the wire form of the Message1.
func (self *Message1) Marshal() []byte {
	rv := make([]byte, 0, Message1Size)
	rv = append(rv, self.PubKey[:]...)
	rv = append(rv, self.Target[:]...)
	return rv
}

// Unmarshal loads the Message1 from its wire form.
func (self *Message1) Unmarshal(data []byte) error {
	if Message1Size != len(data) {
		return newError("invalid Message1 size %d, need %d", len(data), Message1Size)
	}
	copy(self.PubKey[:], data[:PubKeySize])
	copy(self.Target[:], data[PubKeySize:])
	return nil
}

// Message2 is the Initiator reply. It carries the Initiator ephemeral public
// key, its attestation report bound to both public keys, and a MAC over the
// session transcript.
type Message2 struct {
	PubKey PublicKey
	Report Report
	Mac    Mac
}

// Message2Size is the wire size of Message2.
const Message2Size = PubKeySize + ReportSize + MacSize

// Marshal returns the wire form of the Message2.
func (self *Message2) Marshal() []byte {
	rv := make([]byte, 0, Message2Size)
	rv = append(rv, self.PubKey[:]...)
	rv = append(rv, self.Report[:]...)
	rv = append(rv, self.Mac[:]...)
	return rv
}

// Unmarshal loads the Message2 from its wire form.
func (self *Message2) Unmarshal(data []byte) error {
	if Message2Size != len(data) {
		return newError("invalid Message2 size %d, need %d", len(data), Message2Size)
	}
	copy(self.PubKey[:], data[:PubKeySize])
	copy(self.Report[:], data[PubKeySize:PubKeySize+ReportSize])
	copy(self.Mac[:], data[PubKeySize+ReportSize:])
	return nil
}

// Message3 closes the handshake. It carries the Responder attestation report,
// an opaque additional property blob and a MAC over the session transcript.
//
// AdditionalProp is pass-through data for the Initiator caller, the engine
// covers it with the MAC but does not interpret it.
type Message3 struct {
	Mac            Mac
	Report         Report
	AdditionalProp []byte
}

// message3HeadSize is the wire size of Message3 without the property blob.
const message3HeadSize = MacSize + ReportSize + 4

// Marshal returns the wire form of the Message3.
func (self *Message3) Marshal() []byte {
	rv := make([]byte, 0, message3HeadSize+len(self.AdditionalProp))
	rv = append(rv, self.Mac[:]...)
	rv = append(rv, self.Report[:]...)
	rv = binary.LittleEndian.AppendUint32(rv, uint32(len(self.AdditionalProp)))
	rv = append(rv, self.AdditionalProp...)
	return rv
}

// Unmarshal loads the Message3 from its wire form.
func (self *Message3) Unmarshal(data []byte) error {
	if len(data) < message3HeadSize {
		return newError("invalid Message3 size %d, need at least %d", len(data), message3HeadSize)
	}
	propsize := binary.LittleEndian.Uint32(data[MacSize+ReportSize:])
	if propsize > MaxPropSize {
		return newError("Message3 additional property size %d over limit %d", propsize, MaxPropSize)
	}
	if len(data) != message3HeadSize+int(propsize) {
		return newError("invalid Message3 size %d, header announces %d", len(data), message3HeadSize+int(propsize))
	}
	copy(self.Mac[:], data[:MacSize])
	copy(self.Report[:], data[MacSize:MacSize+ReportSize])
	if propsize > 0 {
		self.AdditionalProp = make([]byte, propsize)
		copy(self.AdditionalProp, data[message3HeadSize:])
	} else {
		self.AdditionalProp = nil
	}
	return nil
}

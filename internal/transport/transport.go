package transport

import (
	"encoding/binary"
	"io"

	"code.attlink.org/golang/pkg/dhsession"
)

type Transport interface {
	ReadBytes() ([]byte, error)
	WriteBytes(data []byte) error
}

// T aliases Transport
type T = Transport

// WireMarshaler is implemented by messages carrying their own fixed layout
// binary codec, the handshake messages in particular.
type WireMarshaler interface {
	Marshal() []byte
}

// WireUnmarshaler is the read side counterpart of WireMarshaler.
type WireUnmarshaler interface {
	Unmarshal(data []byte) error
}

// RawMsg is a "marker" type used to disable serialization
type RawMsg []byte

// MessageTransport read/write messages to inner Transport after converting them to bytes.
//
// Message bytes are produced in order of preference by the message own binary
// codec (WireMarshaler), or the S Serializer. RawMsg bypasses both.
type MessageTransport struct {
	Transport
	S Serializer                     // Convert messages to bytes and bytes to messages.
	C *dhsession.TransportCipherPair // Encrypt/Decrypt messages bytes.
}

// WriteMessage converts msg to bytes and writes msg bytes to inner Transport.
//
// If the MessageTransport has an inner Cipher, msg bytes are encrypted prior to be written.
func (self MessageTransport) WriteMessage(msg any) error {
	var srzmsg []byte
	var err error

	switch v := msg.(type) {
	case RawMsg:
		srzmsg = []byte(v)
	case WireMarshaler:
		srzmsg = v.Marshal()
	default:
		if nil == self.S {
			return newError("message %T needs a Serializer", msg)
		}
		srzmsg, err = self.S.Marshal(msg)
		if nil != err {
			return wrapError(err, "failed marshalling msg")
		}
	}

	if nil != self.C {
		// we need to apply encryption
		enc := self.C.Encryptor()
		srzmsg, err = enc.EncryptWithAd(nil, srzmsg)
		if nil != err {
			return wrapError(err, "failed encrypting msg")
		}
	}

	err = self.WriteBytes(srzmsg)

	return wrapError(err, "failed writing msg") // nil if err is nil ...
}

// ReadMessage reads msg bytes from inner Transport and deserializes them to msg.
//
// If the MessageTransport has an inner Cipher, msg bytes are decrypted prior to be deserialized.
func (self MessageTransport) ReadMessage(msg any) error {

	srzmsg, err := self.ReadBytes()
	if nil != err {
		return wrapError(err, "failed reading message bytes")
	}

	// optionally decrypt srzmsg
	if nil != self.C {
		dec := self.C.Decryptor()
		srzmsg, err = dec.DecryptWithAd(nil, srzmsg)
		if nil != err {
			return wrapError(err, "failed decrypting message")
		}
	}

	// unmarshal srzmsg
	switch v := msg.(type) {
	case *RawMsg:
		*v = RawMsg(srzmsg)
	case WireUnmarshaler:
		err = v.Unmarshal(srzmsg)
	default:
		if nil == self.S {
			return newError("message %T needs a Serializer", msg)
		}
		err = self.S.Unmarshal(srzmsg, msg)
	}

	return wrapError(err, "failed unmarshaling message") // nil if err is nil

}

// RWTransport frames messages over a byte stream with a uint16 length prefix.
type RWTransport struct {
	R io.Reader // source from which messages are read.
	W io.Writer // destination to which messages are written.
}

func (self RWTransport) ReadBytes() ([]byte, error) {
	// read size
	psb := make([]byte, 2)
	_, err := io.ReadFull(self.R, psb)
	if nil != err {
		return nil, wrapError(err, "failed reading data size")
	}
	psz := binary.BigEndian.Uint16(psb)

	// read data
	data := make([]byte, int(psz))
	_, err = io.ReadFull(self.R, data)
	if nil != err {
		return nil, wrapError(err, "failed reading data")
	}

	return data, nil
}

func (self RWTransport) WriteBytes(data []byte) error {
	if len(data) > 0xFFFF {
		return newError("data larger than %d", 0xFFFF)
	}

	// prefix data with uint16 length
	pdata := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(pdata, uint16(len(data)))
	copy(pdata[2:], data)

	_, err := self.W.Write(pdata)

	return wrapError(err, "failed writing data") // nil if err is nil
}

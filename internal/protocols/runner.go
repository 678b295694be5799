// Package protocols drives handshake sessions over transports.
//
// The runner functions serve stream oriented deployments where one connection
// carries one handshake. The Host serves message oriented deployments where
// many interleaved handshakes share one endpoint.
package protocols

import (
	"code.attlink.org/golang/internal/transport"
	"code.attlink.org/golang/pkg/dhsession"
)

// Result is the outcome of a completed handshake.
type Result struct {
	// Key is the derived session key.
	Key dhsession.SessionKey

	// Peer is the verified peer identity.
	Peer dhsession.PeerIdentity

	// Prop is the opaque additional property carried by the closing message.
	// The Responder sends it, the Initiator receives it.
	Prop []byte
}

// CipherPair initializes the transport ciphers protecting the channel the
// Result stands for. The Result key is left usable afterwards, Wipe it when
// the ciphers are the only intended use.
func (self *Result) CipherPair(role dhsession.Role) (*dhsession.TransportCipherPair, error) {
	pair, err := dhsession.NewTransportCipherPair(self.Key, role)
	return pair, wrapError(err, "failed cipher pair initialization") // nil if err is nil
}

// RunInitiator synchronously drives s over t until the handshake completes.
// s shall be a freshly initialized Initiator session.
func RunInitiator(s *dhsession.Session, t transport.T) (Result, error) {
	var rv Result
	if dhsession.RoleInitiator != s.Role() {
		return rv, newError("RunInitiator needs an Initiator session, got %s", s.Role())
	}
	mt := transport.MessageTransport{Transport: t}

	msg1 := &dhsession.Message1{}
	err := mt.ReadMessage(msg1)
	if nil != err {
		return rv, wrapError(err, "failed reading opening message")
	}

	msg2, err := s.ProcessMsg1(msg1)
	if nil != err {
		return rv, wrapError(err, "failed processing opening message")
	}
	err = mt.WriteMessage(msg2)
	if nil != err {
		return rv, wrapError(err, "failed writing reply message")
	}

	msg3 := &dhsession.Message3{}
	err = mt.ReadMessage(msg3)
	if nil != err {
		return rv, wrapError(err, "failed reading closing message")
	}

	key, peer, err := s.ProcessMsg3(msg3)
	if nil != err {
		return rv, wrapError(err, "failed processing closing message")
	}

	rv = Result{Key: key, Peer: peer, Prop: msg3.AdditionalProp}
	return rv, nil
}

// RunResponder synchronously drives s over t until the handshake completes.
// s shall be a freshly initialized Responder session. prop is forwarded to the
// Initiator inside the closing message, it may be nil.
func RunResponder(s *dhsession.Session, t transport.T, prop []byte) (Result, error) {
	var rv Result
	if dhsession.RoleResponder != s.Role() {
		return rv, newError("RunResponder needs a Responder session, got %s", s.Role())
	}
	mt := transport.MessageTransport{Transport: t}

	msg1, err := s.GenerateMsg1()
	if nil != err {
		return rv, wrapError(err, "failed generating opening message")
	}
	err = mt.WriteMessage(msg1)
	if nil != err {
		return rv, wrapError(err, "failed writing opening message")
	}

	msg2 := &dhsession.Message2{}
	err = mt.ReadMessage(msg2)
	if nil != err {
		return rv, wrapError(err, "failed reading reply message")
	}

	msg3, key, peer, err := s.ProcessMsg2(msg2, prop)
	if nil != err {
		return rv, wrapError(err, "failed processing reply message")
	}
	err = mt.WriteMessage(msg3)
	if nil != err {
		return rv, wrapError(err, "failed writing closing message")
	}

	rv = Result{Key: key, Peer: peer, Prop: prop}
	return rv, nil
}

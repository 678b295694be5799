package protocols

import (
	"time"

	"code.attlink.org/golang/internal/session"
	"code.attlink.org/golang/pkg/dhsession"
)

// defaultHandshakeLifetime bounds the time in between Open and Finish.
const defaultHandshakeLifetime = 2 * time.Minute

// HostConfig configures a Host.
type HostConfig struct {
	// Session is the template of the Responder sessions the Host creates.
	Session dhsession.Config

	// Prop is forwarded to every Initiator inside the closing message.
	Prop []byte

	// Lifetime bounds in-flight handshakes. Zero selects a default.
	Lifetime time.Duration
}

// Host serves the Responder side of many interleaved handshakes. Callers
// correlate the two exchange rounds with the session id issued by Open;
// sessions not finished within the configured lifetime are dropped.
//
// Host methods are safe for concurrent use.
type Host struct {
	cfg      HostConfig
	sessions *session.MemStore[session.Sid, *dhsession.Session]
}

// NewHost constructs a Host.
func NewHost(cfg HostConfig) (*Host, error) {
	if 0 == cfg.Lifetime {
		cfg.Lifetime = defaultHandshakeLifetime
	}

	sidfacto, err := session.NewSidFactory(cfg.Lifetime)
	if nil != err {
		return nil, wrapError(err, "failed session id factory construction")
	}
	sessions, err := session.NewMemStore[session.Sid, *dhsession.Session](sidfacto)
	if nil != err {
		return nil, wrapError(err, "failed session store construction")
	}
	// expired sessions still hold key material, Close wipes it
	sessions.OnEvict = func(s *dhsession.Session) { _ = s.Close() }

	// fail construction early if the session template is unusable
	probe, err := dhsession.Init(dhsession.RoleResponder, cfg.Session)
	if nil != err {
		return nil, wrapError(err, "invalid session template")
	}
	_ = probe.Close()

	return &Host{cfg: cfg, sessions: sessions}, nil
}

// Open starts a handshake. It returns the opening message for the Initiator
// and the session id correlating the Finish call.
func (self *Host) Open() (session.Sid, *dhsession.Message1, error) {
	var sid session.Sid

	s, err := dhsession.Init(dhsession.RoleResponder, self.cfg.Session)
	if nil != err {
		return sid, nil, wrapError(err, "failed session initialization")
	}
	msg1, err := s.GenerateMsg1()
	if nil != err {
		return sid, nil, wrapError(err, "failed generating opening message")
	}

	sid, err = self.sessions.Save(s)
	if nil != err {
		_ = s.Close()
		return sid, nil, wrapError(err, "failed registering session")
	}

	return sid, msg1, nil
}

// Finish completes the handshake started under sid. It errors with
// ErrUnknownSession if sid references no live session, because it expired,
// was already finished, or never existed.
func (self *Host) Finish(sid session.Sid, msg2 *dhsession.Message2) (*dhsession.Message3, Result, error) {
	var rv Result

	s, found := self.sessions.Pop(sid)
	if !found {
		return nil, rv, wrapError(ErrUnknownSession, "no live session for sid")
	}

	msg3, key, peer, err := s.ProcessMsg2(msg2, self.cfg.Prop)
	if nil != err {
		return nil, rv, wrapError(err, "failed processing reply message")
	}

	rv = Result{Key: key, Peer: peer, Prop: self.cfg.Prop}
	return msg3, rv, nil
}

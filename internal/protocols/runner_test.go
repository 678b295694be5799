package protocols

import (
	"bytes"
	"crypto/rand"
	"net"
	"testing"

	"code.attlink.org/golang/internal/enclave"
	"code.attlink.org/golang/internal/transport"
	"code.attlink.org/golang/pkg/dhsession"
)

func testEndpoints(t *testing.T) (init, resp *dhsession.Session, initId, respId dhsession.PeerIdentity) {
	t.Helper()

	platform, err := enclave.NewPlatform(rand.Reader)
	if nil != err {
		t.Fatalf("failed platform construction, got error %v", err)
	}
	alpha, err := platform.NewEnclave(enclave.Params{Name: "alpha", IsvProdId: 1, IsvSvn: 1})
	if nil != err {
		t.Fatalf("failed enclave construction, got error %v", err)
	}
	beta, err := platform.NewEnclave(enclave.Params{Name: "beta", IsvProdId: 2, IsvSvn: 1})
	if nil != err {
		t.Fatalf("failed enclave construction, got error %v", err)
	}

	init, err = dhsession.Init(dhsession.RoleInitiator, dhsession.Config{Reporter: alpha})
	if nil != err {
		t.Fatalf("failed session initialization, got error %v", err)
	}
	resp, err = dhsession.Init(dhsession.RoleResponder, dhsession.Config{Reporter: beta})
	if nil != err {
		t.Fatalf("failed session initialization, got error %v", err)
	}

	return init, resp, alpha.Identity(), beta.Identity()
}

func TestRunnerHandshake(t *testing.T) {
	init, resp, initId, respId := testEndpoints(t)

	ic, rc := net.Pipe()
	defer ic.Close()
	defer rc.Close()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := RunResponder(resp, transport.RWTransport{R: rc, W: rc}, []byte("service: attlink"))
		done <- outcome{res: res, err: err}
	}()

	ires, err := RunInitiator(init, transport.RWTransport{R: ic, W: ic})
	if nil != err {
		t.Fatalf("failed running Initiator, got error %v", err)
	}
	rout := <-done
	if nil != rout.err {
		t.Fatalf("failed running Responder, got error %v", rout.err)
	}

	if ires.Key != rout.res.Key {
		t.Error("runner endpoints derived different session keys")
	}
	if ires.Peer != respId || rout.res.Peer != initId {
		t.Error("runner endpoints report wrong peer identities")
	}
	if !bytes.Equal([]byte("service: attlink"), ires.Prop) {
		t.Error("additional property was not forwarded")
	}

	// the derived key protects the follow-up channel
	ipair, err := ires.CipherPair(dhsession.RoleInitiator)
	if nil != err {
		t.Fatalf("failed building Initiator cipher pair, got error %v", err)
	}
	rpair, err := rout.res.CipherPair(dhsession.RoleResponder)
	if nil != err {
		t.Fatalf("failed building Responder cipher pair, got error %v", err)
	}
	sealed, err := ipair.Encryptor().EncryptWithAd(nil, []byte("over the channel"))
	if nil != err {
		t.Fatalf("failed sealing channel message, got error %v", err)
	}
	opened, err := rpair.Decryptor().DecryptWithAd(nil, sealed)
	if nil != err {
		t.Fatalf("failed opening channel message, got error %v", err)
	}
	if !bytes.Equal([]byte("over the channel"), opened) {
		t.Error("channel roundtrip altered the message")
	}
}

func TestRunnerRoleControl(t *testing.T) {
	init, resp, _, _ := testEndpoints(t)
	buf := new(bytes.Buffer)
	rw := transport.RWTransport{R: buf, W: buf}

	_, err := RunInitiator(resp, rw)
	if nil == err {
		t.Error("RunInitiator accepted a Responder session")
	}
	_, err = RunResponder(init, rw, nil)
	if nil == err {
		t.Error("RunResponder accepted an Initiator session")
	}
}

func TestRunnerTransportFailure(t *testing.T) {
	_, resp, _, _ := testEndpoints(t)

	buf := new(bytes.Buffer)
	lt := transport.NewLimitTransport(transport.RWTransport{R: buf, W: buf})
	lt.SetWriteLimit(0)

	_, err := RunResponder(resp, lt, nil)
	if nil == err {
		t.Error("RunResponder survived a dead transport")
	}
}

package dhsession

import (
	"bytes"
	"errors"
	"testing"
)

func newTestCipherPairs(t *testing.T) (init, resp *TransportCipherPair) {
	t.Helper()
	key := SessionKey{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
	init, err := NewTransportCipherPair(key, RoleInitiator)
	if nil != err {
		t.Fatalf("Failed NewTransportCipherPair, got error %v", err)
	}
	resp, err = NewTransportCipherPair(key, RoleResponder)
	if nil != err {
		t.Fatalf("Failed NewTransportCipherPair, got error %v", err)
	}
	return init, resp
}

func TestTransportCipherPairRoundtrip(t *testing.T) {
	init, resp := newTestCipherPairs(t)

	for round := 0; round < 4; round++ {
		msg := []byte{byte(round), 0xAA, 0xBB}

		ct, err := init.Encryptor().EncryptWithAd(nil, msg)
		if nil != err {
			t.Fatalf("Failed EncryptWithAd, got error %v", err)
		}
		pt, err := resp.Decryptor().DecryptWithAd(nil, ct)
		if nil != err {
			t.Fatalf("Failed DecryptWithAd, got error %v", err)
		}
		if !bytes.Equal(msg, pt) {
			t.Fatal("channel roundtrip altered the message")
		}

		// reverse direction
		ct, err = resp.Encryptor().EncryptWithAd(nil, msg)
		if nil != err {
			t.Fatalf("Failed EncryptWithAd, got error %v", err)
		}
		pt, err = init.Decryptor().DecryptWithAd(nil, ct)
		if nil != err {
			t.Fatalf("Failed DecryptWithAd, got error %v", err)
		}
		if !bytes.Equal(msg, pt) {
			t.Fatal("channel roundtrip altered the message")
		}
	}
}

func TestTransportCipherRejectsTampering(t *testing.T) {
	init, resp := newTestCipherPairs(t)

	ct, err := init.Encryptor().EncryptWithAd([]byte("header"), []byte("payload"))
	if nil != err {
		t.Fatalf("Failed EncryptWithAd, got error %v", err)
	}

	bad := bytes.Clone(ct)
	bad[0] ^= 0x01
	_, err = resp.Decryptor().DecryptWithAd([]byte("header"), bad)
	if !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("Expected ErrAuthenticationFailure, got %v", err)
	}

	_, err = resp.Decryptor().DecryptWithAd([]byte("altered"), ct)
	if !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("Expected ErrAuthenticationFailure, got %v", err)
	}
}

func TestTransportCipherRejectsReordering(t *testing.T) {
	init, resp := newTestCipherPairs(t)

	ct1, err := init.Encryptor().EncryptWithAd(nil, []byte("first"))
	if nil != err {
		t.Fatalf("Failed EncryptWithAd, got error %v", err)
	}
	ct2, err := init.Encryptor().EncryptWithAd(nil, []byte("second"))
	if nil != err {
		t.Fatalf("Failed EncryptWithAd, got error %v", err)
	}

	_, err = resp.Decryptor().DecryptWithAd(nil, ct2)
	if !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("Expected ErrAuthenticationFailure on skipped message, got %v", err)
	}

	// failed decryption shall not consume the counter
	pt, err := resp.Decryptor().DecryptWithAd(nil, ct1)
	if nil != err {
		t.Fatalf("Failed DecryptWithAd, got error %v", err)
	}
	if !bytes.Equal([]byte("first"), pt) {
		t.Fatal("channel roundtrip altered the message")
	}
}

func TestTransportCipherDirectionsAreDistinct(t *testing.T) {
	init, resp := newTestCipherPairs(t)

	ct, err := init.Encryptor().EncryptWithAd(nil, []byte("loop"))
	if nil != err {
		t.Fatalf("Failed EncryptWithAd, got error %v", err)
	}

	// a message reflected back to its sender must not open
	_, err = init.Decryptor().DecryptWithAd(nil, ct)
	if !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("Expected ErrAuthenticationFailure on reflected message, got %v", err)
	}
	_ = resp
}

func TestNewTransportCipherPairRejectsBadRole(t *testing.T) {
	_, err := NewTransportCipherPair(SessionKey{}, Role(9))
	if nil == err {
		t.Error("Could build a cipher pair with an invalid role")
	}
}

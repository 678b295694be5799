package transport

import (
	"errors"
	"reflect"
	"testing"
)

func TestSafeSerializerValidation(t *testing.T) {
	srz := WrapInSafeSerializer(CBORSerializer{})

	_, err := srz.Marshal(InvalidDummy{})
	if !errors.Is(err, ValidationError) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	data, err := srz.Marshal(Dummy{X: 1, Name: "valid"})
	if nil != err {
		t.Fatalf("failed marshalling valid message, got error %v", err)
	}

	loaded := InvalidDummy{Dummy: &Dummy{}}
	err = srz.Unmarshal(data, &loaded)
	if !errors.Is(err, ValidationError) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestSafeSerializerEncryption(t *testing.T) {
	initpair, resppair := testCipherPairs(t)
	wsrz := SafeSerializer{Serializer: CBORSerializer{}, CipherPair: initpair}
	rsrz := SafeSerializer{Serializer: CBORSerializer{}, CipherPair: resppair}

	msg := Dummy{X: 3, Y: 4, Name: "protected"}
	data, err := wsrz.Marshal(msg)
	if nil != err {
		t.Fatalf("failed marshalling, got error %v", err)
	}

	loaded := Dummy{}
	err = rsrz.Unmarshal(data, &loaded)
	if nil != err {
		t.Fatalf("failed unmarshalling, got error %v", err)
	}
	if !reflect.DeepEqual(msg, loaded) {
		t.Fatalf("failed recovering msg\n%+v\n!=\n%+v", msg, loaded)
	}

	// tampered ciphertext
	data, err = wsrz.Marshal(msg)
	if nil != err {
		t.Fatalf("failed marshalling, got error %v", err)
	}
	data[0] ^= 0x01
	err = rsrz.Unmarshal(data, &loaded)
	if !errors.Is(err, EncryptionError) {
		t.Fatalf("Expected EncryptionError, got %v", err)
	}
}

func TestSafeSerializerUnmarshalFailure(t *testing.T) {
	srz := WrapInSafeSerializer(CBORSerializer{})

	loaded := Dummy{}
	err := srz.Unmarshal([]byte{0xFF, 0xFF, 0xFF}, &loaded)
	if !errors.Is(err, SerializationError) {
		t.Fatalf("Expected SerializationError, got %v", err)
	}
}

func TestWrapInSafeSerializerIdempotent(t *testing.T) {
	srz := WrapInSafeSerializer(JSONSerializer{})
	rewrapped := WrapInSafeSerializer(srz)
	if !reflect.DeepEqual(srz, rewrapped) {
		t.Fatal("rewrapping a SafeSerializer altered it")
	}
}

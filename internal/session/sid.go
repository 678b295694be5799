package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"io"
	"time"

	"github.com/google/uuid"

	"code.attlink.org/golang/internal/algos"
)

// SidSize is the byte size of a Sid.
const SidSize = 48

// Sid is a self validating session identifier. It embeds its generation
// pseudo time, caller associated data, a random unique part and an integrity
// tag keyed by the emitting SidFactory.
//
// Layout: ts[0:8] | ad[8:16] | uuid[16:32] | tag[32:48], integers big-endian.
type Sid [SidSize]byte

// T returns the Sid generation pseudo time.
func (self Sid) T() int64 {
	return int64(binary.BigEndian.Uint64(self[:8]))
}

// AD returns the associated data embedded in the Sid.
func (self Sid) AD() uint64 {
	return binary.BigEndian.Uint64(self[8:16])
}

// UUID returns the random unique part of the Sid.
func (self Sid) UUID() uuid.UUID {
	var rv uuid.UUID
	copy(rv[:], self[16:32])
	return rv
}

var _ Timed = Sid{}

// SidFactory generates and validates Sid keys. Generated Sids remain valid
// for the lifetime the SidFactory was constructed with.
type SidFactory struct {
	clock Clock
	key   [algos.MacKeySize]byte
}

// NewSidFactory constructs a SidFactory issuing Sids valid for lifetime.
// It errors if lifetime can not be split over the store slots.
func NewSidFactory(lifetime time.Duration) (*SidFactory, error) {
	if lifetime < numSlot*time.Nanosecond {
		return nil, newError("invalid lifetime %v, need at least %d ns", lifetime, numSlot)
	}

	rv := &SidFactory{}
	err := rv.clock.Init(lifetime / numSlot)
	if nil != err {
		return nil, wrapError(err, "failed clock initialization")
	}
	_, err = io.ReadFull(rand.Reader, rv.key[:])
	if nil != err {
		return nil, wrapError(err, "failed integrity key generation")
	}

	return rv, nil
}

// New generates a Sid embedding ad.
func (self *SidFactory) New(ad uint64) Sid {
	var rv Sid
	binary.BigEndian.PutUint64(rv[:8], uint64(self.clock.T()))
	binary.BigEndian.PutUint64(rv[8:16], ad)
	u := uuid.New()
	copy(rv[16:32], u[:])

	// the key size is fixed, Cmac can not fail
	tag, _ := algos.Cmac(self.key[:], rv[:32])
	copy(rv[32:], tag)

	return rv
}

// Check validates sid. It errors with ErrKeyTampered if the integrity tag does
// not verify and with ErrKeyExpired if sid is past its lifetime.
func (self *SidFactory) Check(sid Sid) error {
	tag, err := algos.Cmac(self.key[:], sid[:32])
	if nil != err {
		return wrapError(err, "failed integrity tag computation")
	}
	if 1 != subtle.ConstantTimeCompare(tag, sid[32:]) {
		return wrapError(ErrKeyTampered, "invalid integrity tag")
	}

	delta := self.clock.T() - sid.T()
	if delta < 0 || delta >= numSlot {
		return wrapError(ErrKeyExpired, "sid expired %d slots ago", delta-numSlot+1)
	}

	return nil
}

var _ KeyFactory[Sid] = &SidFactory{}

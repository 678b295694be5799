package algos

import (
	"crypto/aes"
	"crypto/subtle"

	"code.attlink.org/golang/internal/utils"
)

const (
	// MacKeySize is the byte length of AES-CMAC keys.
	MacKeySize = 16

	// MacSize is the byte length of AES-CMAC tags.
	MacSize = 16
)

// Cmac computes the AES-128-CMAC tag of data under key, following RFC 4493.
// It errors if key is not MacKeySize bytes long.
//
// No package of the Go crypto ecosystem we rely on provides CMAC, hence this
// implementation over the standard aes block cipher.
func Cmac(key, data []byte) ([]byte, error) {
	if MacKeySize != len(key) {
		return nil, newError("invalid CMAC key size %d, need %d", len(key), MacKeySize)
	}
	block, err := aes.NewCipher(key)
	if nil != err {
		return nil, wrapError(err, "failed AES cipher initialization")
	}

	// subkey generation, RFC 4493 section 2.3
	var k1, k2 [MacSize]byte
	block.Encrypt(k1[:], k1[:])
	dbl(&k1)
	k2 = k1
	dbl(&k2)

	var x, last [MacSize]byte
	numblk := (len(data) + MacSize - 1) / MacSize
	if 0 == numblk {
		numblk = 1
	}

	for pos := 0; pos < numblk-1; pos++ {
		xorInto(&x, data[pos*MacSize:(pos+1)*MacSize])
		block.Encrypt(x[:], x[:])
	}

	rem := data[(numblk-1)*MacSize:]
	if MacSize == len(rem) {
		copy(last[:], rem)
		xorBlock(&last, &k1)
	} else {
		copy(last[:], rem)
		last[len(rem)] = 0x80
		xorBlock(&last, &k2)
	}
	xorBlock(&x, &last)
	block.Encrypt(x[:], x[:])

	utils.Wipe(k1[:])
	utils.Wipe(k2[:])
	utils.Wipe(last[:])

	return x[:], nil
}

// CmacVerify recomputes the AES-128-CMAC tag of data under key and compares it
// with mac in constant time. It errors if key has an invalid size.
func CmacVerify(key, data, mac []byte) (bool, error) {
	want, err := Cmac(key, data)
	if nil != err {
		return false, wrapError(err, "failed tag computation")
	}
	ok := 1 == subtle.ConstantTimeCompare(want, mac)
	utils.Wipe(want)
	return ok, nil
}

// dbl doubles blk in GF(2^128), RFC 4493 subkey step.
func dbl(blk *[MacSize]byte) {
	var carry byte
	for pos := MacSize - 1; pos >= 0; pos-- {
		b := blk[pos]
		blk[pos] = (b << 1) | carry
		carry = b >> 7
	}
	// constant-time conditional xor of the GF reduction term
	blk[MacSize-1] ^= 0x87 & (0 - carry)
}

func xorInto(dst *[MacSize]byte, src []byte) {
	for pos := range dst {
		dst[pos] ^= src[pos]
	}
}

func xorBlock(dst, src *[MacSize]byte) {
	for pos := range dst {
		dst[pos] ^= src[pos]
	}
}

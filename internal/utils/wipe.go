package utils

import (
	"runtime"
)

// Wipe zeroes buf. Key material shall be passed through Wipe before being released.
//
// Wipe is best effort, the noinline directive reduces the chance that the compiler
// elides the zeroing writes.
//
//go:noinline
func Wipe(buf []byte) {
	for pos := range buf {
		buf[pos] = 0
	}
	runtime.KeepAlive(&buf)
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !amd64 && !arm64

package falconlog

// readTSC returns a cycle-like counter sample. Architectures without a
// cycle counter this module knows how to read fall back to the system
// monotonic clock, per spec.md's own allowance for degrading to the
// system clock when rdtsc is unavailable.
func readTSC() uint64 {
	return fallbackCounter()
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build amd64

package falconlog

// readTSC returns a cycle-like counter sample. A true RDTSC read is a
// single assembly instruction, but this module does not ship a hand
// written .s body for it — the pack this engine was grounded on carries
// no verified reference for one, and an unverified instruction sequence
// is worse than an honest fallback. amd64 shares the portable
// monotonic-clock counter every other architecture uses until a real
// implementation lands; see fallbackCounter.
func readTSC() uint64 {
	return fallbackCounter()
}

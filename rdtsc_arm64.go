// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build arm64

package falconlog

// readTSC returns a cycle-like counter sample. The arm64 analogue of
// RDTSC is a single MRS read of CNTVCT_EL0, but for the same reason as
// the amd64 build (no verified assembly body to adapt from the pack this
// engine was grounded on), arm64 shares the portable fallback too.
func readTSC() uint64 {
	return fallbackCounter()
}

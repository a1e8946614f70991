// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build windows

package falconlog

// acquireFileLock is a no-op on windows. The in-process guard in
// acquireProcessLock still prevents a second Backend within the same
// process; cross-process enforcement here would need a named mutex this
// module does not wire up.
func acquireFileLock() (func(), error) {
	return func() {}, nil
}

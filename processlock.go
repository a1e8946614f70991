// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import "code.hybscloud.com/atomix"

// backendRunning is the in-process half of the singleton guard: cheap to
// check, and sufficient on its own for the common case of a second
// Backend.Start call within the same process. acquireFileLock adds the
// cross-process half.
var backendRunning atomix.Bool

// processLock represents a held backend singleton lock, released once via
// Release.
type processLock struct {
	release func()
}

// acquireProcessLock claims both the in-process and (where supported)
// cross-process backend singleton. RdtscClock's resync anchor and
// ThreadContextRegistry's dirty-flag cache both assume exactly one
// backend goroutine as their sole writer; running two in the same process
// would corrupt both.
func acquireProcessLock() (*processLock, error) {
	if !backendRunning.CompareAndSwapAcqRel(false, true) {
		return nil, newFatalError(ErrCodeDuplicateBackend, "a backend is already running in this process")
	}

	releaseFile, err := acquireFileLock()
	if err != nil {
		backendRunning.StoreRelease(false)
		return nil, err
	}

	return &processLock{release: func() {
		releaseFile()
		backendRunning.StoreRelease(false)
	}}, nil
}

// Release gives up the lock. Safe to call at most once.
func (l *processLock) Release() {
	l.release()
}

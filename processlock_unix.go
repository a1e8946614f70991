// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !windows

package falconlog

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// acquireFileLock takes an exclusive, non-blocking flock on a well-known
// path in the temp directory, giving the singleton guard teeth across
// process boundaries too — the lock path is fixed, so no two processes
// sharing the same temp directory can both run a backend.
func acquireFileLock() (func(), error) {
	path := filepath.Join(os.TempDir(), "falconlog.backend.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrapFatalError(ErrCodeDuplicateBackend, "failed to open backend lock file", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, wrapFatalError(ErrCodeDuplicateBackend, "another process already holds the backend lock", err)
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}

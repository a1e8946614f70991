// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package falconlog

import "golang.org/x/sys/unix"

// setThreadAffinity pins the calling OS thread to the given CPU set. The
// caller must hold the thread with runtime.LockOSThread first. Only the
// first CPU is honored today — the backend runs a single drain thread, so
// a list longer than one entry just picks its first element, matching a
// round-robin assignment of a single worker.
func setThreadAffinity(cpus []int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpus[0])
	return unix.SchedSetaffinity(0, &set)
}

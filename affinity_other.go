// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package falconlog

import "errors"

// setThreadAffinity has no portable implementation outside Linux's
// sched_setaffinity; BackendCPUAffinity is a no-op everywhere else.
func setThreadAffinity(_ []int) error {
	return errors.New("falconlog: cpu affinity is not supported on this platform")
}

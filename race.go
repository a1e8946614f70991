// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package falconlog

// RaceEnabled is true when the race detector is active, for tests that
// need to skip concurrency checks the race detector misreports because of
// cross-variable memory ordering.
const RaceEnabled = true

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"sort"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/agilira/go-timecache"
)

// ClockSource selects how a Logger converts an emit-time sample into
// nanoseconds since epoch.
type ClockSource uint8

const (
	// Tsc reads the CPU timestamp counter at emit time and converts it
	// backend-side via RdtscClock. Cheapest frontend cost; requires the
	// backend to run calibration and periodic resync.
	Tsc ClockSource = iota
	// System reads a cached wall-clock value at emit time. Never a
	// silent fallback for failed Tsc calibration — selecting Tsc and
	// having calibration fail is reported via the error-notifier, not
	// silently downgraded.
	System
	// User delegates to an injected UserClock.
	User
)

var systemClock = timecache.NewWithResolution(time.Millisecond)

// fallbackEpoch anchors fallbackCounter, the portable stand-in for a real
// cycle counter read. time.Since uses the runtime's monotonic clock
// reading, so the counter it derives never jumps backward on an NTP step
// the way wall-clock time can.
var fallbackEpoch = time.Now()

// fallbackCounter returns a monotonically increasing nanosecond-resolution
// counter. It stands in for readTSC on every architecture this module
// ships: a genuine RDTSC/CNTVCT_EL0 read needs a hand-written assembly
// instruction, and none shipped here has been exercised against real
// hardware. Plugging one in later is purely an addition — RdtscClock's
// calibration treats whatever readTSC returns as opaque "ticks" and
// derives its own ticks-per-nanosecond rate, so a fallback that already
// counts in nanoseconds just calibrates to a rate of ~1.0 and everything
// above it keeps working unchanged.
func fallbackCounter() uint64 {
	return uint64(time.Since(fallbackEpoch).Nanoseconds())
}

// systemNow returns the current wall-clock time in nanoseconds since
// epoch, backed by a cached clock so a burst of System-source emits does
// not each pay for a fresh syscall.
func systemNow() uint64 {
	return uint64(systemClock.CachedTime().UnixNano())
}

// UserClock is implemented by callers that want full control over a
// logger's timestamp source. Implementations must be safe for concurrent
// use by many producer goroutines.
type UserClock interface {
	Now() uint64
}

// anchor is one slot of RdtscClock's two-slot versioned base. Read and
// written without synchronization beyond the seqlock on version: correct
// because every reader bounds its read with a version check before and
// after, and there is exactly one writer (the backend, inside resync).
type anchor struct {
	baseTime int64
	baseTSC  uint64
}

// RdtscClock converts CPU cycle counter samples to nanoseconds since
// epoch. Calibration runs once per process (see calibrateRdtsc); each
// RdtscClock instance maintains its own resync anchor, so two instances
// never share resync state.
type RdtscClock struct {
	resyncIntervalTicks   int64
	resyncIntervalOriginal int64
	nsPerTick             float64

	_       pad
	version atomix.Uint64
	_       pad
	base    [2]anchor

	notify ErrorNotifier
}

var rdtscCalibration struct {
	once      sync.Once
	nsPerTick float64
}

// calibrateRdtsc runs the teacher-independent, quill-derived calibration
// procedure once per process: 13 busy-spin trials of ~10ms each, taking
// the median observed ticks-per-nanosecond rate.
func calibrateRdtsc() float64 {
	rdtscCalibration.once.Do(func() {
		const trials = 13
		const spinDuration = 10 * time.Millisecond
		var rates [trials]float64

		for i := 0; i < trials; i++ {
			begWall := time.Now()
			begTSC := readTSC()

			var elapsed time.Duration
			var endTSC uint64
			for {
				endWall := time.Now()
				endTSC = readTSC()
				elapsed = endWall.Sub(begWall)
				if elapsed >= spinDuration {
					break
				}
			}
			rates[i] = float64(endTSC-begTSC) / float64(elapsed.Nanoseconds())
		}

		sort.Float64s(rates[:])
		ticksPerNs := rates[trials/2]
		if ticksPerNs > 0 {
			rdtscCalibration.nsPerTick = 1 / ticksPerNs
		}
	})
	return rdtscCalibration.nsPerTick
}

// fastAverage matches quill's RdtscClock::_fast_average: the average of
// x and y computed without the intermediate overflow a naive (x+y)/2
// risks, used to smooth the begin/end TSC samples bracketing a resync's
// wall-clock read into a single anchor point.
func fastAverage(x, y uint64) uint64 {
	return (x & y) + ((x ^ y) >> 1)
}

// NewRdtscClock calibrates and performs initial resync. notify, if
// non-nil, is invoked with a diagnostic error if calibration yields a
// non-positive rate (the clock is then returned without an initial
// resync), for each failed resync, and once more if both initial resync
// attempts fail. Nothing in this package falls back to the System clock
// source when calibration fails; the clock keeps the calibrated rate.
func NewRdtscClock(resyncInterval time.Duration, notify ErrorNotifier) *RdtscClock {
	nsPerTick := calibrateRdtsc()
	c := &RdtscClock{nsPerTick: nsPerTick, notify: notify}
	if nsPerTick <= 0 {
		if notify != nil {
			notify(newFatalError(ErrCodeClockResync, "rdtsc calibration yielded a non-positive rate"))
		}
		return c
	}

	ticksPerNs := 1 / nsPerTick
	c.resyncIntervalTicks = int64(float64(resyncInterval.Nanoseconds()) * ticksPerNs)
	c.resyncIntervalOriginal = c.resyncIntervalTicks

	if !c.resync(2500) {
		if !c.resync(10000) && notify != nil {
			notify(newFatalError(ErrCodeClockResync, "failed to sync RdtscClock; timestamps may be inaccurate"))
		}
	}
	return c
}

// Now converts an rdtsc sample to nanoseconds since epoch. Backend-only:
// it may trigger a resync and skips the version check a concurrent reader
// would need, because the backend is both the sole writer of the anchor
// and the sole caller of this method.
func (c *RdtscClock) Now(tsc uint64) uint64 {
	idx := c.version.LoadRelaxed() & 1
	a := c.base[idx]
	diff := int64(tsc - a.baseTSC)
	if diff > c.resyncIntervalTicks {
		c.resync(2500)
		a = c.base[c.version.LoadRelaxed()&1]
		diff = int64(tsc - a.baseTSC)
	}
	return uint64(a.baseTime + int64(float64(diff)*c.nsPerTick))
}

// NowSafe is the versioned, thread-safe read any goroutine may call —
// for example a sink formatting a timestamp off the backend thread. It
// never triggers a resync; only the backend resyncs, via Now.
func (c *RdtscClock) NowSafe(tsc uint64) uint64 {
	for {
		version := c.version.LoadAcquire()
		a := c.base[version&1]
		if a.baseTSC == 0 && a.baseTime == 0 {
			return 0
		}
		diff := int64(tsc - a.baseTSC)
		wall := uint64(a.baseTime + int64(float64(diff)*c.nsPerTick))
		if version == c.version.LoadAcquire() {
			return wall
		}
	}
}

// resync samples a fresh (tsc, wall-clock) pair and, if the TSC reads
// either side of the wall-clock sample were within lag cycles of each
// other, commits a new anchor. Returns false, and doubles the resync
// interval, if all attempts exceeded lag.
func (c *RdtscClock) resync(lag int64) bool {
	const maxAttempts = 4
	for attempt := 0; attempt < maxAttempts; attempt++ {
		beg := readTSC()
		wallTime := int64(systemNow())
		end := readTSC()

		if int64(end-beg) <= lag {
			idx := (c.version.LoadRelaxed() + 1) & 1
			c.base[idx] = anchor{baseTime: wallTime, baseTSC: fastAverage(beg, end)}
			c.version.AddAcqRel(1)
			c.resyncIntervalTicks = c.resyncIntervalOriginal
			return true
		}
	}

	c.resyncIntervalTicks *= 2
	if c.notify != nil {
		c.notify(newFatalError(ErrCodeClockResync, "rdtsc resync exceeded lag on every attempt; interval doubled"))
	}
	return false
}

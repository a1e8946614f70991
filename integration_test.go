// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memorySink captures every formatted line it receives, safely across
// the backend goroutine writing and the test goroutine reading once the
// backend has been stopped or a Flush barrier has been observed.
type memorySink struct {
	mu    sync.Mutex
	lines [][]byte
}

func (s *memorySink) Write(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, append([]byte(nil), line...))
	return nil
}

func (s *memorySink) Flush() error { return nil }

func (s *memorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	for i, l := range s.lines {
		out[i] = string(l)
	}
	return out
}

func waitFlush(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("flush did not complete in time")
	}
}

// TestScenarioS1SingleThreadOrdering exercises per-producer FIFO: one
// producer on one queue, five records, dispatched in emission order.
func TestScenarioS1SingleThreadOrdering(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)
	lg := loggers.CreateOrGet("s1", DefaultLoggerOptions(), registry)
	sink := &memorySink{}
	lg.AddSink(sink)

	backend := NewBackend(DefaultBackendOptions(), registry, nil)
	require.NoError(t, backend.Start())
	defer backend.Stop()

	tc := lg.NewProducer("p0", QueueOptions{Variant: BoundedBlocking, InitialCapacity: 1 << 16})

	metas := make([]MacroMetadata, 5)
	for i := range metas {
		metas[i] = MacroMetadata{File: "s1", Line: i, Format: fmt.Sprintf("i=%d", i), Level: Info}
		require.NoError(t, lg.Log(tc, &metas[i]))
	}

	done, err := lg.Flush(tc)
	require.NoError(t, err)
	waitFlush(t, done)

	lines := sink.Lines()
	require.Len(t, lines, 5)
	for i, line := range lines {
		require.Contains(t, line, fmt.Sprintf("i=%d", i))
	}
}

// parseTextLine splits one TextFormatter line into its leading timestamp
// and its key=value argument fields, for tests that need to check more
// than substring containment.
func parseTextLine(t *testing.T, line string) (time.Time, map[string]string) {
	t.Helper()
	fields := strings.Fields(line)
	require.NotEmpty(t, fields)
	ts, err := time.Parse(time.RFC3339Nano, fields[0])
	require.NoError(t, err)

	kv := make(map[string]string)
	for _, f := range fields {
		if name, val, ok := strings.Cut(f, "="); ok {
			kv[name] = val
		}
	}
	return ts, kv
}

// TestScenarioS2MultiThreadStrictOrdering exercises EnableStrictLogTimestampOrder
// across four concurrent producers: every dispatched record must appear in
// non-decreasing timestamp order overall, and in exact sequence order
// within a single producer's own subsequence.
func TestScenarioS2MultiThreadStrictOrdering(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)
	lg := loggers.CreateOrGet("s2", DefaultLoggerOptions(), registry)
	sink := &memorySink{}
	lg.AddSink(sink)

	opts := DefaultBackendOptions()
	opts.EnableStrictLogTimestampOrder = true
	backend := NewBackend(opts, registry, nil)
	require.NoError(t, backend.Start())
	defer backend.Stop()

	const threads = 4
	const perThread = 1000

	tcs := make([]*ThreadContext, threads)
	metas := make([][]MacroMetadata, threads)
	for i := 0; i < threads; i++ {
		tcs[i] = lg.NewProducer(fmt.Sprintf("t%d", i), QueueOptions{Variant: BoundedBlocking, InitialCapacity: 1 << 16})
		metas[i] = make([]MacroMetadata, perThread)
	}

	var wg sync.WaitGroup
	wg.Add(threads)
	for i := 0; i < threads; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perThread; j++ {
				metas[i][j] = MacroMetadata{Format: "r", Level: Info}
				require.NoError(t, lg.Log(tcs[i], &metas[i][j],
					Uint("thread_id", uint64(i)), Uint("seq", uint64(j))))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < threads; i++ {
		done, err := lg.Flush(tcs[i])
		require.NoError(t, err)
		waitFlush(t, done)
	}

	lines := sink.Lines()
	require.Len(t, lines, threads*perThread)

	perThreadSeq := make([]int, threads)
	var lastTS time.Time
	for idx, line := range lines {
		ts, kv := parseTextLine(t, line)
		if idx > 0 {
			require.Falsef(t, ts.Before(lastTS.Add(-time.Microsecond)),
				"record %d timestamp %s precedes prior %s by more than the cutoff resolution", idx, ts, lastTS)
		}
		lastTS = ts

		threadID, err := strconv.Atoi(kv["thread_id"])
		require.NoError(t, err)
		seq, err := strconv.Atoi(kv["seq"])
		require.NoError(t, err)

		require.Equal(t, perThreadSeq[threadID], seq, "thread %d dispatched out of order", threadID)
		perThreadSeq[threadID]++
	}
	for i := 0; i < threads; i++ {
		require.Equal(t, perThread, perThreadSeq[i])
	}
}

// TestScenarioS3DropCounting configures a small BoundedDropping queue and
// checks dispatched+dropped accounts for every attempted emit.
func TestScenarioS3DropCounting(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)
	lg := loggers.CreateOrGet("s3", DefaultLoggerOptions(), registry)
	sink := &memorySink{}
	lg.AddSink(sink)

	backend := NewBackend(DefaultBackendOptions(), registry, nil)
	require.NoError(t, backend.Start())

	tc := lg.NewProducer("p0", QueueOptions{Variant: BoundedDropping, InitialCapacity: 4096})

	const attempts = 2000
	succeeded := 0
	metas := make([]MacroMetadata, attempts)
	for i := 0; i < attempts; i++ {
		metas[i] = MacroMetadata{Format: fmt.Sprintf("n=%d", i), Level: Info}
		if err := lg.Log(tc, &metas[i]); err == nil {
			succeeded++
		} else {
			require.True(t, IsWouldBlock(err))
		}
	}

	tc.MarkShutdown()
	backend.opts.WaitForQueuesToEmptyBeforeExit = true
	backend.Stop()

	dispatched, warnings := 0, 0
	for _, line := range sink.Lines() {
		switch {
		case strings.Contains(line, "dropped records"):
			warnings++
		case strings.Contains(line, "n="):
			dispatched++
		}
	}
	dropped := int(tc.Dropped())
	require.Equal(t, attempts, dispatched+dropped)
	require.Greater(t, dropped, 0, "a 4KiB queue under 2000 emits should drop at least one")
	require.Greater(t, warnings, 0, "expected at least one synthetic dropped-record warning")
}

// TestScenarioS4BacktraceOnTrigger checks BacktraceStore eviction and
// trigger-flush ordering: the oldest buffered backtrace record is evicted
// once capacity is exceeded, and a triggering record is dispatched after
// the replayed backlog.
func TestScenarioS4BacktraceOnTrigger(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)
	opts := DefaultLoggerOptions()
	opts.BacktraceCapacity = 2
	opts.BacktraceFlushThreshold = Error
	lg := loggers.CreateOrGet("s4", opts, registry)
	sink := &memorySink{}
	lg.AddSink(sink)

	backend := NewBackend(DefaultBackendOptions(), registry, nil)
	require.NoError(t, backend.Start())
	defer backend.Stop()

	tc := lg.NewProducer("p0", DefaultQueueOptions())

	bt1 := MacroMetadata{Format: "bt1", Level: Backtrace}
	bt2 := MacroMetadata{Format: "bt2", Level: Backtrace}
	bt3 := MacroMetadata{Format: "bt3", Level: Backtrace}
	info := MacroMetadata{Format: "info", Level: Info}
	boom := MacroMetadata{Format: "boom", Level: Error}

	require.NoError(t, lg.Log(tc, &bt1))
	require.NoError(t, lg.Log(tc, &bt2))
	require.NoError(t, lg.Log(tc, &bt3))
	require.NoError(t, lg.Log(tc, &info))
	require.NoError(t, lg.Log(tc, &boom))

	done, err := lg.Flush(tc)
	require.NoError(t, err)
	waitFlush(t, done)

	lines := sink.Lines()
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "info")
	require.Contains(t, lines[1], "bt2")
	require.Contains(t, lines[2], "bt3")
	require.Contains(t, lines[3], "boom")
}

// TestScenarioS5ClockMonotonicityAcrossResync checks that converted
// timestamps stay non-decreasing and close to a reference wall clock
// sampled alongside each emit, across multiple rdtsc resyncs. Scaled down
// from spec.md's 10s/50ms-resync/1ms-cadence soak parameters to keep this
// a fast unit test; the assertions are unchanged.
func TestScenarioS5ClockMonotonicityAcrossResync(t *testing.T) {
	const (
		runFor         = 200 * time.Millisecond
		resyncInterval = 5 * time.Millisecond
		emitEvery      = 1 * time.Millisecond
		tolerance      = 10 * time.Millisecond
	)

	registry := NewThreadContextRegistry()
	clock := NewRdtscClock(resyncInterval, nil)
	loggers := NewLoggerRegistry(clock)
	lg := loggers.CreateOrGet("s5", DefaultLoggerOptions(), registry)
	sink := &memorySink{}
	lg.AddSink(sink)

	backend := NewBackend(DefaultBackendOptions(), registry, clock)
	require.NoError(t, backend.Start())
	defer backend.Stop()

	tc := lg.NewProducer("p0", QueueOptions{Variant: BoundedBlocking, InitialCapacity: 1 << 16})

	// Preallocated so appends never reallocate the backing array: every
	// queued record carries a raw pointer to its MacroMetadata, which
	// must stay at a stable address for the backend to dereference later.
	maxTicks := int(runFor/emitEvery) + 32
	metas := make([]MacroMetadata, 0, maxTicks)

	deadline := time.Now().Add(runFor)
	for time.Now().Before(deadline) && len(metas) < maxTicks {
		ref := time.Now().UnixNano()
		metas = append(metas, MacroMetadata{Format: "tick", Level: Info})
		require.NoError(t, lg.Log(tc, &metas[len(metas)-1], Int("ref_ns", ref)))
		time.Sleep(emitEvery)
	}

	done, err := lg.Flush(tc)
	require.NoError(t, err)
	waitFlush(t, done)

	lines := sink.Lines()
	require.NotEmpty(t, lines)

	var lastTS time.Time
	for idx, line := range lines {
		ts, kv := parseTextLine(t, line)
		if idx > 0 {
			require.Falsef(t, ts.Before(lastTS), "record %d timestamp %s precedes prior %s", idx, ts, lastTS)
		}
		lastTS = ts

		refNS, err := strconv.ParseInt(kv["ref_ns"], 10, 64)
		require.NoError(t, err)
		ref := time.Unix(0, refNS)

		delta := ts.Sub(ref)
		if delta < 0 {
			delta = -delta
		}
		require.LessOrEqualf(t, delta, tolerance, "record %d timestamp %s drifted from reference %s", idx, ts, ref)
	}
}

// TestScenarioS6FlushBarrier checks flush() only waits on the calling
// producer's own records, even with a second producer emitting
// concurrently.
func TestScenarioS6FlushBarrier(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)
	lg := loggers.CreateOrGet("s6", DefaultLoggerOptions(), registry)
	sink := &memorySink{}
	lg.AddSink(sink)

	backend := NewBackend(DefaultBackendOptions(), registry, nil)
	require.NoError(t, backend.Start())
	defer backend.Stop()

	tcA := lg.NewProducer("A", DefaultQueueOptions())
	tcB := lg.NewProducer("B", DefaultQueueOptions())

	const n = 1000
	metasA := make([]MacroMetadata, n)
	metaB := MacroMetadata{Format: "b", Level: Info}
	for i := 0; i < n; i++ {
		metasA[i] = MacroMetadata{Format: fmt.Sprintf("a=%d", i), Level: Info}
		require.NoError(t, lg.Log(tcA, &metasA[i]))
		if i%100 == 0 {
			_ = lg.Log(tcB, &metaB)
		}
	}

	done, err := lg.Flush(tcA)
	require.NoError(t, err)
	waitFlush(t, done)

	count := 0
	for _, line := range sink.Lines() {
		if strings.Contains(line, "a=") {
			count++
		}
	}
	require.Equal(t, n, count)
}

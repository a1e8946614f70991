// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package falconlog is an asynchronous, low-latency structured logging
// engine. A call to Logger.Log on a producer goroutine does the minimum
// work needed to get a record safely onto a lock-free single-producer
// single-consumer queue — an atomic threshold check, a timestamp sample,
// and a framed byte copy — and returns. A single backend goroutine drains
// every producer's queue, decodes, orders, and formats records, and
// writes them to whatever Sinks a Logger has configured.
//
// # Quick Start
//
//	registry := falconlog.NewThreadContextRegistry()
//	clock := falconlog.NewRdtscClock(500*time.Millisecond, nil)
//	loggers := falconlog.NewLoggerRegistry(clock)
//
//	backend := falconlog.NewBackend(falconlog.DefaultBackendOptions(), registry, clock)
//	if err := backend.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer backend.Stop()
//
//	lg := loggers.CreateOrGet("app", falconlog.DefaultLoggerOptions(), registry)
//	lg.AddSink(falconlog.NewWriterSink(os.Stdout))
//
//	var callSite = falconlog.MacroMetadata{
//		File: "main.go", Line: 42, Function: "main",
//		Format: "request handled", Level: falconlog.Info,
//	}
//
//	tc := lg.NewProducer("worker-0", falconlog.DefaultQueueOptions())
//	lg.Log(tc, &callSite, falconlog.Str("path", "/healthz"), falconlog.Int("status", 200))
//
// # Basic Usage
//
// Every call site should declare its MacroMetadata once, as a
// package-level var — the queue carries a pointer to it, not a copy, and
// that pointer must stay valid for the life of the process. A producer
// goroutine registers one ThreadContext via Logger.NewProducer and reuses
// it for every subsequent Log call; Go has no implicit thread-local
// storage for a call-site macro to hook into the way the original
// implementation's per-thread singleton does, so the handle is explicit.
//
// # Common Patterns
//
// Bursty producers that would rather drop records than block should use
// a Dropping queue variant (BoundedDropping or UnboundedDropping);
// latency-sensitive producers that would rather apply backpressure than
// lose data should use a Blocking variant. ThreadContext.Dropped reports
// how many records a given producer has lost.
//
// A Logger's BacktraceCapacity buffers records logged at the Backtrace
// pseudo-level without dispatching them, replaying the buffer
// oldest-first the moment a record at or above BacktraceFlushThreshold
// comes through — useful for getting full context around an error
// without paying dispatch cost for every such line along the way.
//
// # Error Handling
//
// ErrWouldBlock from Reserve (surfaced through Logger.Log's return value)
// is a control-flow signal, not a failure: use IsWouldBlock to
// distinguish it from genuine errors. Everything else Log can return, and
// everything BackendOptions.ErrorNotifier receives, is tagged with one of
// the ErrCode* constants in errors.go.
//
// # Thread Safety
//
// A ThreadContext's Queue is single-producer: only the goroutine that
// created it (or one that has otherwise been handed exclusive ownership)
// may call Logger.Log with it. A Logger itself — its threshold, its
// backtrace flush trigger, its Valid flag — is safe for concurrent use by
// any number of producer goroutines sharing it across separate
// ThreadContexts.
//
// # Graceful Shutdown
//
// Call ThreadContext.MarkShutdown from the producer goroutine once it
// will never emit again, then Backend.Stop with
// BackendOptions.WaitForQueuesToEmptyBeforeExit set to have the backend
// drain every queue to empty before it returns. Logger.Flush gives a
// narrower guarantee: a channel that closes once every record a specific
// ThreadContext enqueued before the call has been dispatched.
//
// # Race Detection
//
// RdtscClock's seqlock-style anchor reads (NowSafe) intentionally read a
// plain struct field outside the version check's own synchronization,
// relying on acquire/release ordering on the version counter rather than
// on the Go race detector's happens-before model. Code that runs under
// -race should be aware this is a known, intentional pattern — see
// race.go.
//
// # Dependencies
//
// code.hybscloud.com/atomix supplies every atomic primitive (ordered
// loads/stores, compare-and-swap) used by the queues, registries, and
// clock. code.hybscloud.com/spin and code.hybscloud.com/iox supply the
// spin-then-backoff and would-block vocabulary blocking queue variants
// use. github.com/agilira/go-errors tags every fatal condition with a
// stable error code; github.com/agilira/go-timecache caches wall-clock
// reads for System-source loggers and for RdtscClock's resync. golang.org/x/sys/unix
// backs the cross-process half of the backend singleton guard.
package falconlog

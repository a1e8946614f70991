// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog_test

import (
	"os"
	"time"

	"code.hybscloud.com/falconlog"
)

// callSite is declared package-level, as every call site's MacroMetadata
// must be: the queue only ever carries a pointer to it.
var callSite = falconlog.MacroMetadata{
	File:     "example_test.go",
	Function: "Example",
	Format:   "request handled",
	Level:    falconlog.Info,
}

func Example() {
	registry := falconlog.NewThreadContextRegistry()
	loggers := falconlog.NewLoggerRegistry(nil)

	backend := falconlog.NewBackend(falconlog.DefaultBackendOptions(), registry, nil)
	if err := backend.Start(); err != nil {
		panic(err)
	}
	defer backend.Stop()

	lg := loggers.CreateOrGet("app", falconlog.DefaultLoggerOptions(), registry)
	lg.AddSink(falconlog.NewWriterSink(os.Stdout))

	tc := lg.NewProducer("worker-0", falconlog.DefaultQueueOptions())
	_ = lg.Log(tc, &callSite, falconlog.Str("path", "/healthz"), falconlog.Int("status", 200))

	done, err := lg.Flush(tc)
	if err != nil {
		panic(err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

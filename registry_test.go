// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThreadContextRegistryDirtyFlag(t *testing.T) {
	r := NewThreadContextRegistry()
	require.False(t, r.Dirty())

	tc := r.Register("p0", NewQueue(BoundedDropping, 64, 0))
	require.True(t, r.Dirty())

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	require.False(t, r.Dirty())

	r.Remove(tc)
	require.True(t, r.Dirty())
	require.Empty(t, r.Snapshot())
}

func TestLoggerRegistryCreateOrGetIsIdempotent(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)

	opts := DefaultLoggerOptions()
	opts.Threshold = Warning
	a := loggers.CreateOrGet("svc", opts, registry)
	b := loggers.CreateOrGet("svc", DefaultLoggerOptions(), registry)

	require.Same(t, a, b)
	require.Equal(t, Warning, a.Threshold())
}

func TestLoggerRegistryRemoveInvalidates(t *testing.T) {
	registry := NewThreadContextRegistry()
	loggers := NewLoggerRegistry(nil)

	lg := loggers.CreateOrGet("svc", DefaultLoggerOptions(), registry)
	require.True(t, lg.Valid())

	loggers.Remove("svc")
	require.False(t, lg.Valid())

	_, ok := loggers.Get("svc")
	require.False(t, ok)
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package falconlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgEncodeDecodeRoundTrip(t *testing.T) {
	args := []Arg{
		Int("count", -42),
		Uint("total", 1<<40),
		Float64("ratio", 3.5),
		Bool("ok", true),
		Str("path", "/healthz"),
		Bytes("blob", []byte{1, 2, 3, 4}),
	}

	buf := make([]byte, argsEncodedSize(args))
	encodeArgs(buf, args)

	decoded, err := decodeArgs(buf)
	require.NoError(t, err)
	require.Len(t, decoded, len(args))

	require.Equal(t, "count", decoded[0].Name)
	require.Equal(t, int64(-42), decoded[0].Value)

	require.Equal(t, "total", decoded[1].Name)
	require.Equal(t, uint64(1<<40), decoded[1].Value)

	require.Equal(t, "ratio", decoded[2].Name)
	require.Equal(t, 3.5, decoded[2].Value)

	require.Equal(t, "ok", decoded[3].Name)
	require.Equal(t, true, decoded[3].Value)

	require.Equal(t, "path", decoded[4].Name)
	require.Equal(t, "/healthz", decoded[4].Value)

	require.Equal(t, "blob", decoded[5].Name)
	require.Equal(t, []byte{1, 2, 3, 4}, decoded[5].Value)
}

func TestDecodeArgsRejectsTruncatedPayload(t *testing.T) {
	args := []Arg{Str("name", "hello world")}
	buf := make([]byte, argsEncodedSize(args))
	encodeArgs(buf, args)

	_, err := decodeArgs(buf[:len(buf)-2])
	require.Error(t, err)
}

func TestDecodeArgsEmptyPayloadYieldsNoArgs(t *testing.T) {
	decoded, err := decodeArgs(nil)
	require.NoError(t, err)
	require.Empty(t, decoded)
}

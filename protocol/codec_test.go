package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloatRoundTrip(t *testing.T) {
	require := require.New(t)

	values := []float64{0, 1, -1, 100.5, -42.25, 0.125, 33000, -21000, 359.75}
	for _, v := range values {
		buf := EncodeFloat(v)
		require.Len(buf, FloatSize)
		require.Equal(v, DecodeFloat(buf), "value %v", v)
	}

	// Values outside float32 precision narrow on encode.
	buf := EncodeFloat(0.1)
	require.Equal(float64(float32(0.1)), DecodeFloat(buf))
}

func TestFloatWireLayout(t *testing.T) {
	require := require.New(t)

	require.Equal([]byte{0x3f, 0xc0, 0x00, 0x00}, EncodeFloat(1.5))
	require.Equal([]byte{0x42, 0xc9, 0x00, 0x00}, EncodeFloat(100.5))
	require.Equal([]byte{0xc2, 0x29, 0x00, 0x00}, EncodeFloat(-42.25))
}

func TestFloatPair(t *testing.T) {
	require := require.New(t)

	buf := EncodeFloatPair(100.5, -42.25)
	require.Len(buf, FloatPairSize)
	require.Equal([]byte{0x42, 0xc9, 0x00, 0x00, 0xc2, 0x29, 0x00, 0x00}, buf)

	x, y := DecodeFloatPair(buf)
	require.Equal(100.5, x)
	require.Equal(-42.25, y)
}

func TestProgressCodec(t *testing.T) {
	require := require.New(t)

	buf := EncodeProgress(AcquisitionProgress{Current: 3, Total: 10})
	require.Equal([]byte{0, 0, 0, 3, 0, 0, 0, 10}, buf)
	require.Equal(AcquisitionProgress{Current: 3, Total: 10}, DecodeProgress(buf))

	// The wire is unsigned, negatives clamp to zero.
	buf = EncodeProgress(AcquisitionProgress{Current: -1, Total: -5})
	require.Equal(AcquisitionProgress{}, DecodeProgress(buf))
}

func TestAck(t *testing.T) {
	require := require.New(t)

	require.Len(Ack, AckSize)
	require.True(IsAck([]byte("ACK")))
	require.False(IsAck([]byte("NAK")))
	require.False(IsAck(nil))
}

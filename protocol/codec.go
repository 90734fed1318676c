package protocol

import (
	"encoding/binary"
	"math"
)

// Fixed field widths of the binary payloads and responses.
const (
	// FloatSize is the width of one coordinate value on the wire.
	FloatSize = 4
	// FloatPairSize is the width of an X/Y coordinate pair.
	FloatPairSize = 2 * FloatSize
	// ProgressSize is the width of a progress response.
	ProgressSize = 8
	// AckSize is the width of a cancellation acknowledgement.
	AckSize = 3
)

// Ack is the response body acknowledging a cancellation request.
const Ack = "ACK"

// EndMarker terminates an acquisition payload on the wire. The server reads
// the payload as text until it sees this suffix.
const EndMarker = " END_MARKER"

// Coordinates cross the wire as IEEE 754 single precision values in big
// endian byte order. Stage travel is a few centimetres at sub-micrometre
// resolution, comfortably within float32 range, so the narrowing from the
// float64 API is lossless for any position a stage can realize.

// EncodeFloat renders a coordinate as a FloatSize byte field.
func EncodeFloat(v float64) []byte {
	buf := make([]byte, FloatSize)
	binary.BigEndian.PutUint32(buf, math.Float32bits(float32(v)))

	return buf
}

// DecodeFloat reads a coordinate from the first FloatSize bytes of b.
func DecodeFloat(b []byte) float64 {
	return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
}

// EncodeFloatPair renders an X/Y pair as a FloatPairSize byte field, X first.
func EncodeFloatPair(x, y float64) []byte {
	buf := make([]byte, FloatPairSize)
	binary.BigEndian.PutUint32(buf[:FloatSize], math.Float32bits(float32(x)))
	binary.BigEndian.PutUint32(buf[FloatSize:], math.Float32bits(float32(y)))

	return buf
}

// DecodeFloatPair reads an X/Y pair from the first FloatPairSize bytes of b.
func DecodeFloatPair(b []byte) (x float64, y float64) {
	x = DecodeFloat(b[:FloatSize])
	y = DecodeFloat(b[FloatSize:FloatPairSize])

	return x, y
}

// EncodeProgress renders progress counters as a ProgressSize byte field,
// current first. Negative counters are clamped to zero, the wire carries
// unsigned values.
func EncodeProgress(p AcquisitionProgress) []byte {
	buf := make([]byte, ProgressSize)
	binary.BigEndian.PutUint32(buf[:4], clampUint32(p.Current))
	binary.BigEndian.PutUint32(buf[4:], clampUint32(p.Total))

	return buf
}

// DecodeProgress reads progress counters from the first ProgressSize bytes
// of b.
func DecodeProgress(b []byte) AcquisitionProgress {
	return AcquisitionProgress{
		Current: int(binary.BigEndian.Uint32(b[:4])),
		Total:   int(binary.BigEndian.Uint32(b[4:8])),
	}
}

// IsAck reports whether b is a cancellation acknowledgement.
func IsAck(b []byte) bool {
	return string(b) == Ack
}

func clampUint32(v int) uint32 {
	if v < 0 {
		return 0
	}

	return uint32(v)
}

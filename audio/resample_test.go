package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample_OutputLength(t *testing.T) {
	tests := []struct {
		name      string
		inLen     int
		srcRate   int
		dstRate   int
		expectLen int
	}{
		{name: "48k to 16k", inLen: 480, srcRate: 48000, dstRate: 16000, expectLen: 160},
		{name: "44.1k to 16k", inLen: 441, srcRate: 44100, dstRate: 16000, expectLen: 160},
		{name: "8k to 16k upsamples", inLen: 80, srcRate: 8000, dstRate: 16000, expectLen: 160},
		{name: "rounds to nearest", inLen: 100, srcRate: 44100, dstRate: 16000, expectLen: 36},
		{name: "empty input", inLen: 0, srcRate: 48000, dstRate: 16000, expectLen: 0},
		{name: "single sample upsampled", inLen: 1, srcRate: 8000, dstRate: 16000, expectLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Resample(make([]float32, tt.inLen), tt.srcRate, tt.dstRate)
			assert.Len(t, out, tt.expectLen)
		})
	}
}

func TestResample_EndpointsPreserved(t *testing.T) {
	in := []float32{0.5, -0.25, 0.75, 0.1, -0.9}

	out := Resample(in, 48000, 16000)

	require.NotEmpty(t, out)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[len(in)-1], out[len(out)-1])
}

func TestResample_SameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}

	out := Resample(in, 16000, 16000)

	assert.Equal(t, in, out)

	// A copy, not an alias.
	out[0] = 0.9
	assert.Equal(t, float32(0.1), in[0])
}

func TestResample_InterpolatesBetweenSamples(t *testing.T) {
	// A linear ramp resamples to a linear ramp.
	in := make([]float32, 9)
	for i := range in {
		in[i] = float32(i) / 8
	}

	out := Resample(in, 32000, 16000)

	require.Len(t, out, 5)
	for i, sample := range out {
		want := float32(i) / float32(len(out)-1)
		assert.InDelta(t, want, sample, 1e-6, "sample %d", i)
	}
}

func TestResample_SingleSampleHeld(t *testing.T) {
	out := Resample([]float32{0.42}, 8000, 16000)

	require.Len(t, out, 2)
	assert.Equal(t, float32(0.42), out[0])
	assert.Equal(t, float32(0.42), out[1])
}

func TestResampleBlock(t *testing.T) {
	block := Block{Samples: make([]float32, 480), SampleRate: 48000}

	out := ResampleBlock(block)

	assert.Len(t, out, 160)
}

func TestEncodeDecodeFloat32LE(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, float32(math.Pi)}

	data := EncodeFloat32LE(in)
	require.Len(t, data, len(in)*4)

	out := DecodeFloat32LE(data)
	assert.Equal(t, in, out)
}

func TestDecodeFloat32LE_IgnoresTrailingBytes(t *testing.T) {
	data := EncodeFloat32LE([]float32{0.25})
	data = append(data, 0xff, 0xff)

	out := DecodeFloat32LE(data)

	assert.Equal(t, []float32{0.25}, out)
}

func TestFloat32ToPCM16(t *testing.T) {
	tests := []struct {
		name     string
		sample   float32
		expected int16
	}{
		{name: "zero", sample: 0, expected: 0},
		{name: "full scale", sample: 1, expected: math.MaxInt16},
		{name: "negative full scale", sample: -1, expected: -math.MaxInt16},
		{name: "half scale", sample: 0.5, expected: math.MaxInt16 / 2},
		{name: "clamps above", sample: 1.7, expected: math.MaxInt16},
		{name: "clamps below", sample: -2.3, expected: -math.MaxInt16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Float32ToPCM16([]float32{tt.sample})
			require.Len(t, data, 2)
			got := int16(data[0]) | int16(data[1])<<8
			assert.Equal(t, tt.expected, got)
		})
	}
}

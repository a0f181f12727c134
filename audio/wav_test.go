package audio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWAV_RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, -1, 0.999}

	samples, rate, err := DecodeWAV(EncodeWAV(in, 44100))

	require.NoError(t, err)
	assert.Equal(t, 44100, rate)
	require.Len(t, samples, len(in))
	for i := range in {
		assert.InDelta(t, in[i], samples[i], 1e-3, "sample %d", i)
	}
}

func TestDecodeWAV_Rejections(t *testing.T) {
	valid := EncodeWAV(make([]float32, 16), 16000)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{name: "too short", mutate: func(b []byte) []byte { return b[:20] }},
		{name: "not riff", mutate: func(b []byte) []byte { b[0] = 'X'; return b }},
		{name: "not pcm", mutate: func(b []byte) []byte { b[20] = 3; return b }},
		{name: "stereo", mutate: func(b []byte) []byte { b[22] = 2; return b }},
		{name: "8 bit", mutate: func(b []byte) []byte { b[34] = 8; return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, len(valid))
			copy(data, valid)

			_, _, err := DecodeWAV(tt.mutate(data))
			assert.Error(t, err)
		})
	}
}

func TestOpenWAV_ReadsBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, os.WriteFile(path, EncodeWAV(make([]float32, 1000), 8000), 0o644))

	f, err := OpenWAV(path, 400)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, 8000, f.SampleRate())

	var lengths []int
	for {
		block, err := f.ReadBlock()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 8000, block.SampleRate)
		lengths = append(lengths, len(block.Samples))
	}
	assert.Equal(t, []int{400, 400, 200}, lengths)

	// Exhausted files keep reporting EOF.
	_, err = f.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenWAV_MissingFile(t *testing.T) {
	_, err := OpenWAV(filepath.Join(t.TempDir(), "absent.wav"), 0)
	assert.Error(t, err)
}

package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16 // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// DecodeWAV parses mono 16-bit PCM WAV data into float samples in
// [-1.0, 1.0] and the file's sample rate.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 44 {
		return nil, 0, fmt.Errorf("wav data too short: %d bytes", len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("read wav header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a wav file")
	}
	if string(header.Subchunk1ID[:]) != "fmt " || string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, fmt.Errorf("unsupported wav chunk layout")
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported wav format %d, want PCM", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, want 16", header.BitsPerSample)
	}
	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d, want mono", header.NumChannels)
	}

	payload := data[44:]
	n := int(header.Subchunk2Size) / 2
	if n > len(payload)/2 {
		n = len(payload) / 2
	}

	samples := make([]float32, n)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(payload[2*i:]))
		samples[i] = float32(v) / 32768
	}
	return samples, int(header.SampleRate), nil
}

// EncodeWAV renders float samples in [-1.0, 1.0] as a mono 16-bit PCM WAV
// file at the given rate.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToPCM16(samples)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	binary.Write(buf, binary.LittleEndian, header)
	buf.Write(pcm)
	return buf.Bytes()
}

// WAVFile serves a decoded WAV file as capture-sized blocks, the same shape
// the microphone produces. ReadBlock returns io.EOF once the file is
// exhausted.
type WAVFile struct {
	samples   []float32
	rate      int
	pos       int
	blockSize int
}

// OpenWAV decodes the mono 16-bit PCM WAV file at path.
func OpenWAV(path string, blockSize int) (*WAVFile, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return &WAVFile{samples: samples, rate: rate, blockSize: blockSize}, nil
}

// SampleRate returns the file's sample rate.
func (f *WAVFile) SampleRate() int {
	return f.rate
}

// ReadBlock returns the next block of samples, short on the final read.
func (f *WAVFile) ReadBlock() (Block, error) {
	if f.pos >= len(f.samples) {
		return Block{}, io.EOF
	}

	end := f.pos + f.blockSize
	if end > len(f.samples) {
		end = len(f.samples)
	}
	samples := make([]float32, end-f.pos)
	copy(samples, f.samples[f.pos:end])
	f.pos = end

	return Block{Samples: samples, SampleRate: f.rate}, nil
}

// Close releases nothing; it exists so file and microphone sources share an
// interface.
func (f *WAVFile) Close() error {
	return nil
}

package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DefaultBlockSize is the number of frames captured per block.
const DefaultBlockSize = 4096

// Microphone captures mono float32 audio from the default input device at
// the device's native sample rate. Blocks are read synchronously; the caller
// resamples to the server rate before sending.
type Microphone struct {
	stream *portaudio.Stream
	buffer []float32
	rate   int
}

// OpenMicrophone initializes PortAudio and starts capturing from the default
// input device. The caller must call Close to release the device.
func OpenMicrophone(blockSize int) (*Microphone, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("no input device: %w", err)
	}
	rate := int(dev.DefaultSampleRate)

	buffer := make([]float32, blockSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), len(buffer), buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	return &Microphone{
		stream: stream,
		buffer: buffer,
		rate:   rate,
	}, nil
}

// SampleRate returns the capture rate of the underlying device.
func (m *Microphone) SampleRate() int {
	return m.rate
}

// ReadBlock blocks until one capture buffer is filled and returns it as a
// Block. The returned samples are a copy and safe to retain.
func (m *Microphone) ReadBlock() (Block, error) {
	if err := m.stream.Read(); err != nil {
		return Block{}, err
	}

	samples := make([]float32, len(m.buffer))
	copy(samples, m.buffer)
	return Block{Samples: samples, SampleRate: m.rate}, nil
}

// Close stops the audio stream, closes it, and terminates PortAudio.
func (m *Microphone) Close() error {
	var err error
	if m.stream != nil {
		if stopErr := m.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := m.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	portaudio.Terminate()
	return err
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/cherrries/WhisperLive/audio"
)

// blockSource is anything that yields capture blocks: the microphone or a
// decoded WAV file.
type blockSource interface {
	ReadBlock() (audio.Block, error)
	SampleRate() int
	Close() error
}

// audioSink consumes capture blocks. Satisfied by a session.
type audioSink interface {
	SendAudio(block audio.Block) error
}

// openSource picks the capture source: the WAV file named by --file, or the
// default microphone. The second return reports file mode, where blocks are
// paced to real time instead of arriving at capture speed.
func openSource() (blockSource, bool, error) {
	if path := viper.GetString("file"); path != "" {
		f, err := audio.OpenWAV(path, audio.DefaultBlockSize)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	}

	mic, err := audio.OpenMicrophone(audio.DefaultBlockSize)
	if err != nil {
		return nil, false, fmt.Errorf("open microphone: %w", err)
	}
	return mic, false, nil
}

// streamAudio pumps blocks from src into the sink until the source is
// exhausted or the context is canceled. Blocks sent before the server is
// ready are dropped by the session. With pace set, each block is followed by
// a sleep of its own duration so file playback matches live capture.
func streamAudio(ctx context.Context, src blockSource, sink audioSink, pace bool) error {
	logger.Debug("streaming audio", "rate", src.SampleRate())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		block, err := src.ReadBlock()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		if err := sink.SendAudio(block); err != nil {
			return err
		}

		if pace && block.SampleRate > 0 {
			d := time.Duration(float64(len(block.Samples)) / float64(block.SampleRate) * float64(time.Second))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(d):
			}
		}
	}
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"

	whisperlive "github.com/cherrries/WhisperLive"
)

// srtWriter appends finished segments to a SubRip subtitle file, one
// numbered cue per segment.
type srtWriter struct {
	f     *os.File
	w     *bufio.Writer
	index int
}

func newSRTWriter(path string) (*srtWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create srt file: %w", err)
	}
	return &srtWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// WriteSegment emits one cue using the segment's server timestamps.
func (s *srtWriter) WriteSegment(seg whisperlive.Segment) error {
	start, err := strconv.ParseFloat(seg.Start, 64)
	if err != nil {
		return fmt.Errorf("parse segment start %q: %w", seg.Start, err)
	}
	end, err := strconv.ParseFloat(seg.End, 64)
	if err != nil {
		return fmt.Errorf("parse segment end %q: %w", seg.End, err)
	}

	s.index++
	_, err = fmt.Fprintf(s.w, "%d\n%s --> %s\n%s\n\n",
		s.index, srtTimestamp(start), srtTimestamp(end), seg.Text)
	return err
}

func (s *srtWriter) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// srtTimestamp renders seconds as the SubRip HH:MM:SS,mmm form.
func srtTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	ms := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, sec, ms)
}

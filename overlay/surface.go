// Package overlay renders an accumulated transcript as a bounded window of
// wrapped caption lines. Line segmentation is driven by a measurement
// surface: text is laid out on the surface and breaks are recorded where the
// rendered height crosses line boundaries, so the renderer itself never
// needs to know how the host surface wraps text.
package overlay

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Surface is the measurement oracle used for line segmentation. The
// renderer owns its surface exclusively: Height is read synchronously after
// every SetText.
type Surface interface {
	// SetText replaces the surface content.
	SetText(text string)

	// Height reports the rendered height of the current content, in the
	// same unit as LineHeight.
	Height() float64

	// LineHeight is the fixed height of a single rendered line.
	LineHeight() float64
}

// TextSurface measures text in terminal cells: content wraps greedily at a
// fixed column width and every wrapped row is one line height tall. Widths
// are display widths (go-runewidth), so wide runes count double.
type TextSurface struct {
	width      int
	lineHeight float64
	text       string
}

// NewTextSurface returns a surface wrapping at width columns. A
// non-positive lineHeight falls back to DefaultLineHeight.
func NewTextSurface(width int, lineHeight float64) *TextSurface {
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	return &TextSurface{width: width, lineHeight: lineHeight}
}

// SetWidth changes the wrap width, e.g. on terminal resize.
func (s *TextSurface) SetWidth(width int) { s.width = width }

// Width returns the current wrap width in columns.
func (s *TextSurface) Width() int { return s.width }

func (s *TextSurface) SetText(text string) { s.text = text }

func (s *TextSurface) LineHeight() float64 { return s.lineHeight }

func (s *TextSurface) Height() float64 {
	return float64(s.rows()) * s.lineHeight
}

// rows counts wrapped rows with greedy word wrap. Words wider than the
// surface spill across as many rows as they need.
func (s *TextSurface) rows() int {
	words := strings.Fields(s.text)
	if len(words) == 0 {
		return 0
	}
	if s.width <= 0 {
		return 1
	}

	rows := 1
	cur := 0
	for _, word := range words {
		w := runewidth.StringWidth(word)
		if cur > 0 {
			if cur+1+w <= s.width {
				cur += 1 + w
				continue
			}
			rows++
			cur = 0
		}
		for w > s.width {
			rows++
			w -= s.width
		}
		cur = w
	}
	return rows
}

package overlay

import (
	"math"
	"strings"
	"sync"

	whisperlive "github.com/cherrries/WhisperLive"
)

const (
	// DefaultWindow is the number of most-recent lines kept visible.
	DefaultWindow = 3

	// DefaultLineHeight is used when a surface reports no usable line
	// height.
	DefaultLineHeight = 24.0
)

// Line is one visible caption line with its vertical offset from the top of
// the window, in surface units.
type Line struct {
	Text   string
	Offset float64
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithWindow overrides the number of visible lines.
func WithWindow(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.window = n
		}
	}
}

// Renderer accumulates transcript text and maintains the visible caption
// window. Every update recomputes the full line partition from scratch
// against the measurement surface; only the accumulated text survives
// between updates. That is O(words so far) per update, which is fine for
// the lifetime of a single capture session.
type Renderer struct {
	mu      sync.Mutex
	surface Surface
	window  int
	text    strings.Builder
	lines   []string
}

// NewRenderer creates a renderer segmenting against surface, showing the
// last DefaultWindow lines.
func NewRenderer(surface Surface, opts ...RendererOption) *Renderer {
	r := &Renderer{surface: surface, window: DefaultWindow}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnSegments appends a batch of transcript segments and recomputes the line
// partition. Each segment contributes its text with embedded whitespace
// (including line breaks) collapsed to single spaces, followed by one
// space. Batches with no visible text are ignored entirely.
func (r *Renderer) OnSegments(segments []whisperlive.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appended := false
	for _, seg := range segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		r.text.WriteString(text)
		r.text.WriteString(" ")
		appended = true
	}
	if !appended {
		return
	}
	r.recompute()
}

// recompute rebuilds the full partition: words are appended to the surface
// one at a time and a break is recorded each time the measured height
// crosses a new multiple of the line height. The word that causes the
// crossing starts the new line.
func (r *Renderer) recompute() {
	lh := r.lineHeight()
	words := strings.Fields(r.text.String())

	r.lines = r.lines[:0]
	var acc strings.Builder
	lineStart := 0
	seen := 1
	for i, word := range words {
		acc.WriteString(word)
		acc.WriteString(" ")
		r.surface.SetText(acc.String())
		n := int(math.Round(r.surface.Height() / lh))
		if n > seen && i > lineStart {
			r.lines = append(r.lines, joinLine(words[lineStart:i]))
			lineStart = i
			seen = n
		}
	}
	if lineStart < len(words) {
		r.lines = append(r.lines, joinLine(words[lineStart:]))
	}
}

// joinLine renders a run of words as line text. Every line keeps its
// trailing space so that concatenating all lines reproduces the accumulated
// transcript byte for byte.
func joinLine(words []string) string {
	return strings.Join(words, " ") + " "
}

func (r *Renderer) lineHeight() float64 {
	lh := r.surface.LineHeight()
	if lh <= 0 {
		lh = DefaultLineHeight
	}
	return lh
}

// Relayout re-partitions the accumulated transcript against the surface's
// current geometry. Call after the surface changes size.
func (r *Renderer) Relayout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.text.Len() == 0 {
		return
	}
	r.recompute()
}

// VisibleLines returns the last window lines, stacked top to bottom by the
// cumulative rendered height of the lines above them.
func (r *Renderer) VisibleLines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := len(r.lines) - r.window
	if start < 0 {
		start = 0
	}
	visible := r.lines[start:]

	lh := r.lineHeight()
	out := make([]Line, 0, len(visible))
	offset := 0.0
	for _, text := range visible {
		out = append(out, Line{Text: text, Offset: offset})
		r.surface.SetText(text)
		h := r.surface.Height()
		if h <= 0 {
			h = lh
		}
		offset += h
	}
	return out
}

// Lines returns the full partition, not just the visible window.
func (r *Renderer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Transcript returns the accumulated transcript text.
func (r *Renderer) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text.String()
}

// Reset discards the accumulated transcript and all computed lines. The
// session orchestrator calls this when capture stops.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text.Reset()
	r.lines = r.lines[:0]
}

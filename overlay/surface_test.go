package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSurface_Height(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		text       string
		expectRows int
	}{
		{name: "empty text", width: 20, text: "", expectRows: 0},
		{name: "whitespace only", width: 20, text: "   \n\t", expectRows: 0},
		{name: "fits on one row", width: 20, text: "hello world", expectRows: 1},
		{name: "wraps at width", width: 10, text: "hello world", expectRows: 2},
		{name: "exact fit keeps one row", width: 11, text: "hello world", expectRows: 1},
		{name: "long word spills", width: 4, text: "antidisestablishment", expectRows: 5},
		{name: "wide runes count double", width: 4, text: "日本 語学", expectRows: 2},
		{name: "zero width single row", width: 0, text: "hello world", expectRows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := NewTextSurface(tt.width, 10)
			surface.SetText(tt.text)
			assert.InDelta(t, float64(tt.expectRows)*10, surface.Height(), 1e-9)
		})
	}
}

func TestTextSurface_LineHeightFallback(t *testing.T) {
	surface := NewTextSurface(20, 0)
	assert.InDelta(t, DefaultLineHeight, surface.LineHeight(), 1e-9)
}

func TestTextSurface_SetWidth(t *testing.T) {
	surface := NewTextSurface(40, 10)
	surface.SetText("the quick brown fox jumps over the lazy dog")

	wide := surface.Height()
	surface.SetWidth(12)
	narrow := surface.Height()

	assert.Equal(t, 12, surface.Width())
	assert.Greater(t, narrow, wide)
}

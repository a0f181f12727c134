package main

import (
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// similarityThreshold is how close two lines must be, as a normalized
// Levenshtein similarity, before the newer one is suppressed. Servers
// re-emit a finished segment with small corrections; those should not print
// twice.
const similarityThreshold = 0.9

// RecentLines is a fixed-capacity ring of recently printed transcript lines
// used to suppress near-duplicate output.
type RecentLines struct {
	mu    sync.RWMutex
	lines []string
	head  int
	size  int
}

// NewRecentLines creates a ring holding the last capacity lines.
func NewRecentLines(capacity int) *RecentLines {
	if capacity <= 0 {
		capacity = 1
	}
	return &RecentLines{lines: make([]string, capacity)}
}

// Add records a printed line, evicting the oldest once full.
func (r *RecentLines) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.size < len(r.lines) {
		r.size++
	}
}

// Seen reports whether line is a near-duplicate of any recorded line.
func (r *RecentLines) Seen(line string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	line = normalizeLine(line)
	for i := 0; i < r.size; i++ {
		if similar(line, normalizeLine(r.lines[i])) {
			return true
		}
	}
	return false
}

func normalizeLine(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}

// similar compares normalized Levenshtein similarity against the threshold.
func similar(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	return 1.0-float64(distance)/float64(maxLen) >= similarityThreshold
}

// Package chunk splits raw document text into bounded-size segments along
// natural boundaries.
//
// The splitter scans the text in windows of maxSize bytes and prefers, in
// order: the last fenced-code-block marker, the last blank line, the last
// sentence-ending period. Each candidate must sit past 30% of the window so
// tiny leading fragments are never emitted; a candidate before that point is
// rejected and the next rule is tried. When no rule fires the window is cut
// at its edge.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the segmentation window applied when maxSize <= 0.
const DefaultMaxSize = 5000

// minProgress is the fraction of the window a break candidate must clear.
const minProgress = 0.3

// Split divides text into ordered, non-empty, whitespace-trimmed segments of
// at most maxSize bytes. Splitting is deterministic; concatenating the
// segments reconstructs the input up to boundary whitespace. Segments that
// trim to empty are dropped. Cuts never land inside a multibyte rune, so
// every segment of valid UTF-8 input is valid UTF-8.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var segments []string
	start := 0
	length := len(text)

	for start < length {
		end := start + maxSize

		// Trailing remainder fits in one segment.
		if end >= length {
			if seg := strings.TrimSpace(text[start:]); seg != "" {
				segments = append(segments, seg)
			}
			break
		}

		window := text[start:end]
		threshold := float64(maxSize) * minProgress

		cut := -1
		// A break at the last fence marker keeps the fenced block intact in
		// the following segment.
		if i := strings.LastIndex(window, "```"); i >= 0 && float64(i) > threshold {
			cut = i
		}
		if cut < 0 {
			if i := strings.LastIndex(window, "\n\n"); i >= 0 && float64(i) > threshold {
				cut = i
			}
		}
		if cut < 0 {
			// Keep the period with the leading segment.
			if i := strings.LastIndex(window, ". "); i >= 0 && float64(i) > threshold {
				cut = i + 1
			}
		}
		if cut > 0 {
			end = start + cut
		} else {
			// A hard cut can land inside a multibyte rune; back up to
			// the rune start. When the window is narrower than the rune
			// at start, emit that rune whole.
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				_, n := utf8.DecodeRuneInString(text[start:])
				end = start + n
			}
		}

		if seg := strings.TrimSpace(text[start:end]); seg != "" {
			segments = append(segments, seg)
		}

		// Advance at least one byte so a break resolving to the current
		// start cannot loop forever.
		start = max(start+1, end)
	}

	return segments
}

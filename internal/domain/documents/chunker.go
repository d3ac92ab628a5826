package documents

import (
	"strings"
)

// Fragment is one window of source text produced by Split.
// Offsets are pre-trim positions into the original text.
type Fragment struct {
	Content     string
	StartOffset int
	EndOffset   int
}

// Split walks text in windows of size characters with the given overlap.
// A window boundary that falls before the end of the text is pulled back to
// the nearest preceding sentence terminator or newline, but only when that
// keeps at least half the window; terse line-delimited text would otherwise
// degrade into many tiny chunks. Contents are trimmed and empty windows are
// dropped. Pure function, no I/O.
func Split(text string, size, overlap int) []Fragment {
	if size <= 0 || len(text) == 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	n := len(text)
	var out []Fragment
	start := 0
	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else if cut := sentenceCut(text, start, end); cut-start >= size/2 {
			end = cut
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			out = append(out, Fragment{Content: content, StartOffset: start, EndOffset: end})
		}

		if end >= n {
			break
		}
		// stop once the untouched tail is smaller than the overlap,
		// otherwise the walk would trail off in overlapping slivers
		if n-end < overlap {
			break
		}
		next := end - overlap
		if next < 0 {
			next = 0
		}
		if next <= start {
			break
		}
		start = next
	}
	return out
}

// sentenceCut returns the position just after the last sentence terminator
// or newline inside (start, end), or end when there is none.
func sentenceCut(text string, start, end int) int {
	for i := end - 1; i > start; i-- {
		switch text[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}

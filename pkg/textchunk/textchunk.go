// Package textchunk splits long-form text into bounded segments on word
// boundaries for independent speech synthesis.
package textchunk

import (
	"strings"
	"unicode"
)

// Split cuts text into segments of at most maxLen runes, breaking only at
// whitespace so no word is divided across segments. Segments are verbatim
// slices of the input: concatenating them reproduces text exactly. A single
// word longer than maxLen becomes one oversized segment rather than being
// truncated.
func Split(text string, maxLen int) []string {
	if text == "" || maxLen <= 0 {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var segments []string
	carry := ""
	start := 0
	for start < len(runes) {
		var seg string
		if len(runes)-start <= maxLen {
			seg = string(runes[start:])
			start = len(runes)
		} else {
			cut := -1
			for i := start + maxLen; i > start; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			if cut < 0 {
				// Oversized word: extend past the limit to its end.
				cut = start + maxLen
				for cut < len(runes) && !unicode.IsSpace(runes[cut]) {
					cut++
				}
			}
			seg = string(runes[start:cut])
			start = cut
		}
		seg = carry + seg
		carry = ""
		if strings.TrimSpace(seg) == "" {
			// Whitespace-only runs fold into a neighbor segment so the
			// concatenation round trip stays exact.
			if len(segments) > 0 {
				segments[len(segments)-1] += seg
			} else {
				carry = seg
			}
			continue
		}
		segments = append(segments, seg)
	}
	if carry != "" && len(segments) > 0 {
		segments[len(segments)-1] += carry
	}
	return segments
}

// Join reverses Split. Segments keep their separating whitespace, so joining
// is plain concatenation.
func Join(segments []string) string {
	return strings.Join(segments, "")
}

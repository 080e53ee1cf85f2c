package tts

import (
	"bytes"
	"errors"
	"fmt"
)

// SegmentResult pairs one segment's synthesis outcome with its original
// position in the chapter text.
type SegmentResult struct {
	Index int
	Audio []byte
	Err   error
}

// SegmentError identifies the first segment, in text order, whose synthesis
// failed. Chapter audio is all-or-nothing: one failed segment fails the
// whole artifact.
type SegmentError struct {
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d synthesis failed: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Stitch reassembles per-segment audio strictly by original index, no matter
// in which order the results were produced.
func Stitch(results []SegmentResult) ([]byte, error) {
	if len(results) == 0 {
		return nil, errors.New("stitch: no segments")
	}
	ordered := make([]SegmentResult, len(results))
	seen := make([]bool, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(results) {
			return nil, fmt.Errorf("stitch: segment index %d out of range [0,%d)", r.Index, len(results))
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("stitch: duplicate segment index %d", r.Index)
		}
		seen[r.Index] = true
		ordered[r.Index] = r
	}
	for _, r := range ordered {
		if r.Err != nil {
			return nil, &SegmentError{Index: r.Index, Err: r.Err}
		}
	}
	if len(ordered) == 1 {
		return ordered[0].Audio, nil
	}
	var buf bytes.Buffer
	for _, r := range ordered {
		buf.Write(r.Audio)
	}
	return buf.Bytes(), nil
}

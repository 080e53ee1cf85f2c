package tts

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestStitch_OrderIndependentOfCompletion(t *testing.T) {
	n := 8
	forward := make([]SegmentResult, 0, n)
	reverse := make([]SegmentResult, 0, n)
	for i := 0; i < n; i++ {
		forward = append(forward, SegmentResult{Index: i, Audio: fmt.Appendf(nil, "seg-%d|", i)})
	}
	for i := n - 1; i >= 0; i-- {
		reverse = append(reverse, SegmentResult{Index: i, Audio: fmt.Appendf(nil, "seg-%d|", i)})
	}

	got1, err := Stitch(forward)
	if err != nil {
		t.Fatalf("stitch forward: %v", err)
	}
	got2, err := Stitch(reverse)
	if err != nil {
		t.Fatalf("stitch reverse: %v", err)
	}
	if !bytes.Equal(got1, got2) {
		t.Errorf("completion order changed output:\n%s\n%s", got1, got2)
	}
	want := []byte("seg-0|seg-1|seg-2|seg-3|seg-4|seg-5|seg-6|seg-7|")
	if !bytes.Equal(got1, want) {
		t.Errorf("stitched: got %s, want %s", got1, want)
	}
}

func TestStitch_ReportsFirstFailedIndex(t *testing.T) {
	results := []SegmentResult{
		{Index: 2, Err: errors.New("late failure")},
		{Index: 0, Audio: []byte("a")},
		{Index: 1, Err: errors.New("early failure")},
	}
	_, err := Stitch(results)
	var segErr *SegmentError
	if !errors.As(err, &segErr) {
		t.Fatalf("got %v, want SegmentError", err)
	}
	if segErr.Index != 1 {
		t.Errorf("failed index: got %d, want 1", segErr.Index)
	}
}

func TestStitch_SingleSegmentPassthrough(t *testing.T) {
	audio := []byte{0xff, 0xfb, 0x01, 0x02}
	got, err := Stitch([]SegmentResult{{Index: 0, Audio: audio}})
	if err != nil {
		t.Fatalf("stitch: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("passthrough changed bytes: got %v", got)
	}
}

func TestStitch_RejectsBadIndexes(t *testing.T) {
	if _, err := Stitch(nil); err == nil {
		t.Error("empty input should fail")
	}
	if _, err := Stitch([]SegmentResult{{Index: 5}}); err == nil {
		t.Error("out-of-range index should fail")
	}
	if _, err := Stitch([]SegmentResult{{Index: 0}, {Index: 0}}); err == nil {
		t.Error("duplicate index should fail")
	}
}

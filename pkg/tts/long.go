package tts

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"readaloud/pkg/textchunk"
)

// SynthesizeLong splits text on word boundaries and synthesizes the segments
// concurrently through synth, then stitches the audio back in segment order.
// Concurrency affects latency only; the output byte order always matches the
// input text order.
func SynthesizeLong(ctx context.Context, synth Synthesizer, text string, maxLen, concurrency int) ([]byte, error) {
	segments := textchunk.Split(text, maxLen)
	if len(segments) == 0 {
		return nil, errors.New("synthesize: empty text")
	}
	if len(segments) == 1 {
		return synth.Synthesize(ctx, segments[0])
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]SegmentResult, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, segment := range segments {
		i, segment := i, segment
		g.Go(func() error {
			audio, err := synth.Synthesize(gctx, segment)
			results[i] = SegmentResult{Index: i, Audio: audio, Err: err}
			// Failures travel through results, not the group, so the
			// stitcher names the first failed segment in text order
			// instead of whichever failure happened to finish first.
			return nil
		})
	}
	_ = g.Wait()
	return Stitch(results)
}

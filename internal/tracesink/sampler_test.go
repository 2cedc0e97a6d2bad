package tracesink

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct{}

func (recordingLogger) Debugw(msg string, kv ...interface{}) {}

func newTestSampler() (*screenshotSampler, *[]string) {
	var written []string
	writeImage := func(path string, _ []byte) error {
		written = append(written, path)
		return nil
	}
	return newScreenshotSampler("V", writeImage, recordingLogger{}), &written
}

// TestSampler_SpecScenario4 reproduces spec §8 scenario 4: with
// trace_ts_start = 1_000_000us, frames at 50/150/200/320/420ms elapsed save
// B, D, E (A is kept as the very first frame per the "first image is kept"
// rule the spec explicitly calls out as an implementation choice to
// document).
func TestSampler_SpecScenario4(t *testing.T) {
	s, written := newTestSampler()
	const start = int64(1_000_000)

	s.offer(1_050_000, start, []byte("A"))
	s.offer(1_150_000, start, []byte("B"))
	s.offer(1_200_000, start, []byte("C"))
	s.offer(1_320_000, start, []byte("D"))
	s.offer(1_420_000, start, []byte("E"))
	s.finish()

	assert.Equal(t, []string{
		"V000050.jpg", // A: first frame, kept unconditionally
		"V000150.jpg", // B: exactly 100ms after A, so saved directly; C then becomes pending
		"V000320.jpg", // D
		"V000420.jpg", // E
	}, *written)
}

func TestSampler_DuplicateSuppression(t *testing.T) {
	s, written := newTestSampler()
	const start = int64(0)

	s.offer(200_000, start, []byte("X"))
	s.offer(350_000, start, []byte("X"))
	s.finish()

	assert.Equal(t, []string{"V000200.jpg"}, *written)
}

func TestSampler_NegativeElapsedIsDropped(t *testing.T) {
	s, written := newTestSampler()
	s.offer(500, 1_000_000, []byte("X"))
	s.finish()
	assert.Empty(t, *written)
}

func TestSampler_OversizedGapFlushesPending(t *testing.T) {
	s, written := newTestSampler()
	const start = int64(0)

	// First frame kept at 0ms.
	s.offer(0, start, []byte("A"))
	// Within 100ms interval: becomes pending, not yet flushed.
	s.offer(50_000, start, []byte("B"))
	// Gap from last(0ms) to current(250ms) is > 2*100ms=200ms, and pending
	// (B) differs from last (A): pending must be flushed before current.
	s.offer(250_000, start, []byte("C"))
	s.finish()

	assert.Equal(t, []string{
		"V000000.jpg",
		"V000050.jpg", // bridged pending flush
		"V000250.jpg",
	}, *written)
}

func TestSampler_NoConsecutiveDuplicateBytes(t *testing.T) {
	s, written := newTestSampler()
	images := map[string][]byte{}
	writeImage := func(path string, img []byte) error {
		images[path] = img
		*written = append(*written, path)
		return nil
	}
	s.writeImage = writeImage

	s.offer(0, 0, []byte("A"))
	s.offer(5_000_000, 0, []byte("A")) // far apart in time, identical bytes: duplicate
	s.offer(10_000_000, 0, []byte("B"))
	s.finish()

	var prev []byte
	for _, p := range *written {
		img := images[p]
		assert.NotEqual(t, prev, img, "no two consecutive saved screenshots share image bytes")
		prev = img
	}
}

func TestMinIntervalMs_Tiers(t *testing.T) {
	cases := []struct {
		elapsed  int64
		expected int64
	}{
		{0, 100},
		{20000, 100},
		{20001, 500},
		{40000, 500},
		{40001, 2000},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("elapsed=%d", c.elapsed), func(t *testing.T) {
			assert.Equal(t, c.expected, minIntervalMs(c.elapsed))
		})
	}
}

func TestRound_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(0), round(0, 1000))
	assert.Equal(t, int64(1), round(500, 1000))
	assert.Equal(t, int64(2), round(1500, 1000))
	assert.Equal(t, int64(-1), round(-500, 1000))
}

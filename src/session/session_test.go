package session

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bubble-overlay/src/logutil"
	"bubble-overlay/src/mask"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/sink"
)

var regionA = screenshot.Rect{X1: 0, Y1: 0, X2: 64, Y2: 48}

type harness struct {
	capture    *fakeCapture
	detector   *fakeDetector
	translator *fakeTranslator
	sink       *sink.Recorder
	engine     *Engine
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		capture:    &fakeCapture{},
		detector:   &fakeDetector{},
		translator: &fakeTranslator{},
		sink:       &sink.Recorder{},
	}
	deps := Deps{
		Capture:        h.capture,
		Detector:       h.detector,
		Reader:         fakeReader{texts: map[int]string{}},
		Translator:     h.translator,
		Sink:           h.sink,
		Logger:         logutil.Discard(),
		CaptureBackoff: 20 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&deps)
	}
	e, err := New(deps)
	require.NoError(t, err)
	h.engine = e
	t.Cleanup(e.Stop)
	return h
}

func countLogs(logs []string, prefix string) int {
	n := 0
	for _, l := range logs {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	e, err := New(Deps{Capture: &fakeCapture{}, Detector: &fakeDetector{}, Reader: fakeReader{}, Translator: &fakeTranslator{}, Sink: &sink.Recorder{}})
	require.NoError(t, err)
	assert.Equal(t, defaultBackoff, e.deps.CaptureBackoff)
	assert.NotNil(t, e.deps.Layout)
}

func TestStartStopLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	e := h.engine
	ctx := context.Background()

	assert.Equal(t, Idle, e.State())
	e.Stop() // safe when idle

	require.NoError(t, e.Start(ctx, regionA, 5*time.Millisecond))
	assert.True(t, e.IsRunning())
	assert.ErrorIs(t, e.Start(ctx, regionA, 5*time.Millisecond), ErrSessionRunning)

	require.Eventually(t, func() bool { return len(h.sink.Frames()) >= 2 }, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	assert.False(t, e.IsRunning())
	assert.Equal(t, Idle, e.State())
	e.Stop()

	logs := h.sink.Logs()
	assert.Equal(t, 1, countLogs(logs, MsgStarted))
	assert.Equal(t, 1, countLogs(logs, MsgStopping))
	assert.Equal(t, 1, countLogs(logs, MsgStopped))
}

func TestStartRejectsBadArguments(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.engine.Start(context.Background(), screenshot.Rect{}, time.Millisecond), ErrInvalidRegion)
	assert.ErrorIs(t, h.engine.Start(context.Background(), regionA, 0), ErrInvalidDelay)
	assert.False(t, h.engine.IsRunning())
}

func TestStopObservedWithinOneWait(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Hour))

	start := time.Now()
	h.engine.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, h.capture.count(regionA), "the first wait happens before any capture")
}

func TestNoFrameAfterStop(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.delay = 30 * time.Millisecond
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))

	require.Eventually(t, func() bool { return h.detector.calls.Load() >= 2 }, 2*time.Second, time.Millisecond)
	h.engine.Stop()
	frames := len(h.sink.Frames())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, frames, len(h.sink.Frames()))
	logs := h.sink.Logs()
	assert.Equal(t, MsgStopped, logs[len(logs)-1], "nothing is logged by the loop after stop")
}

func TestRestartJoinsPreviousLoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	regionB := screenshot.Rect{X1: 10, Y1: 10, X2: 50, Y2: 40}

	require.NoError(t, h.engine.Start(ctx, regionA, time.Millisecond))
	require.Eventually(t, func() bool { return h.capture.count(regionA) > 0 }, 2*time.Second, time.Millisecond)

	require.NoError(t, h.engine.Restart(ctx, regionB, time.Millisecond))
	grabsA := h.capture.count(regionA)
	require.Eventually(t, func() bool { return h.capture.count(regionB) > 2 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, grabsA, h.capture.count(regionA), "old loop captured after restart")
	assert.True(t, h.engine.IsRunning())
	assert.Equal(t, 2, countLogs(h.sink.Logs(), MsgStarted))
}

func TestCaptureFailureBacksOffAndContinues(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.CaptureBackoff = 40 * time.Millisecond })
	h.capture.err = errors.New("display gone")

	start := time.Now()
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))
	require.Eventually(t, func() bool {
		return countLogs(h.sink.Logs(), "Capture failed: display gone") >= 3
	}, 3*time.Second, 2*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "two backoffs separate three failures")
	assert.True(t, h.engine.IsRunning())
	assert.Empty(t, h.sink.Frames())
}

func TestLoopEndsWithParentContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.engine.Start(ctx, regionA, time.Millisecond))
	cancel()
	require.Eventually(t, func() bool { return h.engine.State() == Idle }, 2*time.Second, time.Millisecond)
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))
}

func TestPanicDropsFrameButLoopContinues(t *testing.T) {
	reader := &panicReader{}
	h := newHarness(t, func(d *Deps) { d.Reader = reader })
	h.detector.regions = []mask.Region{{Box: image.Rect(4, 4, 40, 20)}}
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))

	require.Eventually(t, func() bool { return reader.calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	assert.True(t, h.engine.IsRunning())
	assert.Empty(t, h.sink.Frames())
}

func TestDetectorPanicEmitsFrameUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.panics = true
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))

	require.Eventually(t, func() bool { return len(h.sink.Frames()) >= 2 }, 2*time.Second, time.Millisecond)
	assert.True(t, h.engine.IsRunning())
	assert.GreaterOrEqual(t, countLogs(h.sink.Logs(), "Detection failed: "), 1)

	h.engine.Stop()
	img, err := screenshot.DecodePNG(h.sink.Frames()[0])
	require.NoError(t, err)
	assert.Equal(t, white, screenshot.ToRGBA(img, img.Bounds()).RGBAAt(10, 10))
}

func TestConcurrentStopsReturnIdle(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 20; i++ {
		require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.engine.Stop()
				assert.Equal(t, Idle, h.engine.State())
			}()
		}
		wg.Wait()
	}
}

func TestSimilarFramesAreReused(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.ReuseSimilar = true
		d.SimilarDistance = 0
	})
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))

	require.Eventually(t, func() bool { return len(h.sink.Frames()) >= 4 }, 2*time.Second, time.Millisecond)
	h.engine.Stop()
	assert.Equal(t, int32(1), h.detector.calls.Load(), "identical frames skip detection")
	frames := h.sink.Frames()
	assert.Equal(t, frames[0], frames[len(frames)-1])
}

func TestSimilarFramesRetryFailedDetection(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.ReuseSimilar = true
		d.SimilarDistance = 0
	})
	h.detector.failFirst = 1
	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))

	require.Eventually(t, func() bool { return len(h.sink.Frames()) >= 4 }, 2*time.Second, time.Millisecond)
	h.engine.Stop()
	assert.Equal(t, int32(2), h.detector.calls.Load(), "a failed detection is not reused")
	frames := h.sink.Frames()
	assert.Equal(t, frames[1], frames[len(frames)-1])
}

func TestProcessWithoutRegionsKeepsFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.regions = []mask.Region{{Box: image.Rect(5, 5, 5, 20)}, {Box: image.Rect(100, 100, 120, 120)}}
	frame := solidFrame(64, 48, white)

	res, err := h.engine.Process(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, res.Detected, "degenerate and out-of-frame regions are dropped")
	assert.Empty(t, res.Overlays)
	assert.Equal(t, solidFrame(64, 48, white).Pix, res.Image.Pix)
	assert.Zero(t, h.translator.calls.Load())
}

func TestProcessDetectionFailureEmitsFrameUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.err = errors.New("sidecar down")

	require.NoError(t, h.engine.Start(context.Background(), regionA, time.Millisecond))
	require.Eventually(t, func() bool { return len(h.sink.Frames()) > 0 }, 2*time.Second, time.Millisecond)
	h.engine.Stop()

	assert.Positive(t, countLogs(h.sink.Logs(), "Detection failed: sidecar down"))
	img, err := screenshot.DecodePNG(h.sink.Frames()[0])
	require.NoError(t, err)
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestProcessReportsDetectionError(t *testing.T) {
	h := newHarness(t, nil)
	h.detector.err = errors.New("sidecar down")

	res, err := h.engine.Process(context.Background(), solidFrame(64, 48, white))
	require.NoError(t, err)
	assert.EqualError(t, res.DetectErr, "sidecar down")
	assert.False(t, res.Detected)

	h.detector.err = nil
	res, err = h.engine.Process(context.Background(), solidFrame(64, 48, white))
	require.NoError(t, err)
	assert.NoError(t, res.DetectErr)
}

func TestProcessWhitespaceTextSkipsTranslation(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Reader = fakeReader{texts: map[int]string{40: " \n\t "}}
	})
	h.detector.regions = []mask.Region{{Box: image.Rect(0, 0, 40, 20)}}

	res, err := h.engine.Process(context.Background(), solidFrame(64, 48, white))
	require.NoError(t, err)
	require.Len(t, res.Overlays, 1)
	assert.Empty(t, res.Overlays[0].Text)
	assert.False(t, res.Overlays[0].Failed)
	assert.True(t, res.Overlays[0].Block.Empty())
	assert.Zero(t, h.translator.calls.Load())
}

func TestProcessPerRegionFailuresUsePlaceholder(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Reader = fakeReader{texts: map[int]string{40: "こんにちは", 30: "だめ"}}
	})
	h.translator.fail = "だめ"
	h.detector.regions = []mask.Region{
		{Box: image.Rect(0, 0, 40, 20)},
		{Box: image.Rect(0, 20, 30, 40)},
		{Box: image.Rect(40, 20, 60, 40)},
	}

	res, err := h.engine.Process(context.Background(), solidFrame(64, 48, white))
	require.NoError(t, err)
	require.Len(t, res.Overlays, 3)

	assert.Equal(t, "EN(こんにちは)", res.Overlays[0].Text)
	assert.False(t, res.Overlays[0].Failed)
	assert.Equal(t, TranslationErrorText, res.Overlays[1].Text, "translation failure")
	assert.Equal(t, TranslationErrorText, res.Overlays[2].Text, "ocr failure")
	for _, o := range res.Overlays {
		assert.False(t, o.Block.Empty())
	}
}

func TestProcessFillsMaskWithMeanColour(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Reader = fakeReader{texts: map[int]string{10: ""}}
	})
	h.detector.regions = []mask.Region{{Box: image.Rect(10, 10, 20, 20)}}

	frame := solidFrame(64, 48, white)
	// dark "text" strokes inside the bubble
	for x := 10; x < 20; x++ {
		frame.SetRGBA(x, 15, colorBlack)
	}

	res, err := h.engine.Process(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, res.Overlays, 1)
	assert.Empty(t, res.Overlays[0].Text, "empty OCR text skips translation")
	assert.Zero(t, h.translator.calls.Load())

	fill := res.Fill
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			require.Equal(t, fill, res.Image.RGBAAt(x, y))
		}
	}
	assert.Equal(t, uint8(229), fill.R, "mean of 90 white and 10 black pixels")
	assert.Equal(t, white, res.Image.RGBAAt(5, 5))
}

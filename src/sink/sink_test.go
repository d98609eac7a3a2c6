package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bubble-overlay/src/logutil"
)

func TestDirWritesFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	d, err := NewDir(dir, logutil.Discard())
	require.NoError(t, err)

	d.EmitFrame([]byte("one"))
	d.EmitFrame([]byte("two"))
	d.EmitLog("ignored")

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	latest, err := os.ReadFile(filepath.Join(dir, "latest.png"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(latest))
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, Log{Logger: logutil.Discard()}, b}

	m.EmitLog("Continuous translation started.")
	m.EmitFrame([]byte{1})

	for _, r := range []*Recorder{a, b} {
		assert.Equal(t, []string{"Continuous translation started."}, r.Logs())
		assert.Equal(t, [][]byte{{1}}, r.Frames())
	}
}

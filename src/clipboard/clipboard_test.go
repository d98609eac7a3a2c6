package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.design/x/clipboard"
)

func TestWriteRoundTrip(t *testing.T) {
	if err := Init(); err != nil {
		t.Skipf("no clipboard in this environment: %v", err)
	}
	require.NoError(t, Write("翻訳 test"))
	assert.Equal(t, "翻訳 test", string(clipboard.Read(clipboard.FmtText)))
}

func TestInitIsStable(t *testing.T) {
	first := Init()
	assert.Equal(t, first, Init())
}

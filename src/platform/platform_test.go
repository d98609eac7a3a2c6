//go:build !windows

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnableDPIAwarenessNoop(t *testing.T) {
	assert.NoError(t, EnableDPIAwareness())
}

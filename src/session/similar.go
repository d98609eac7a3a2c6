package session

import (
	"image"

	"github.com/corona10/goimagehash"
)

type frameHash = *goimagehash.ImageHash

// frameCache remembers the last processed frame by perceptual hash.
type frameCache struct {
	maxDistance int
	hash        frameHash
	png         []byte
}

// lookup hashes frame and returns the cached output when it is close enough.
// The hash is returned either way so the caller can store it after processing.
func (c *frameCache) lookup(frame image.Image) ([]byte, frameHash, bool) {
	h, err := goimagehash.PerceptionHash(frame)
	if err != nil {
		return nil, nil, false
	}
	if c.hash == nil || c.png == nil {
		return nil, h, false
	}
	d, err := c.hash.Distance(h)
	if err != nil || d > c.maxDistance {
		return nil, h, false
	}
	return c.png, h, true
}

func (c *frameCache) store(h frameHash, png []byte) {
	if h == nil {
		return
	}
	c.hash = h
	c.png = png
}

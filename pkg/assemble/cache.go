package assemble

import (
	"crypto/sha256"
	"sync"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/layers"
)

// layerCache memoizes binary layers keyed by a content hash of
// (base digest, binary bytes, in-layer path). A hit returns the layer
// built on miss, so cached and fresh assembly are bit-identical.
type layerCache struct {
	mu      sync.Mutex
	entries map[[sha256.Size]byte]v1.Layer
}

func newLayerCache() *layerCache {
	return &layerCache{
		entries: make(map[[sha256.Size]byte]v1.Layer),
	}
}

func (c *layerCache) executable(baseDigest v1.Hash, binary []byte, containerPath string) (v1.Layer, error) {
	h := sha256.New()
	h.Write([]byte(baseDigest.String()))
	h.Write([]byte(containerPath))
	h.Write([]byte{0})
	h.Write(binary)
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))

	c.mu.Lock()
	defer c.mu.Unlock()
	if layer, ok := c.entries[key]; ok {
		zap.L().Debug("layer cache hit", zap.String("path", containerPath))
		return layer, nil
	}
	layer, err := layers.Executable(binary, containerPath)
	if err != nil {
		return nil, err
	}
	c.entries[key] = layer
	return layer, nil
}

// Package layers builds the reproducible image layers that carry built
// binaries and their runtime assets.
package layers

import (
	"fmt"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// Executable creates a single-file layer with the binary at containerPath,
// marked executable. This is the permission fixup applied before layering,
// artifact transfer does not preserve file modes.
func Executable(binary []byte, containerPath string) (v1.Layer, error) {
	if !strings.HasPrefix(containerPath, "/") {
		return nil, fmt.Errorf("binary path must be absolute, got %s", containerPath)
	}
	if len(binary) == 0 {
		return nil, fmt.Errorf("refusing to layer an empty binary at %s", containerPath)
	}
	name := strings.TrimPrefix(containerPath, "/")
	return Layer(
		map[string][]byte{name: binary},
		map[string]int64{name: executableFileMode},
		Attributes{},
	)
}

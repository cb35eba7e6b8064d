// Package toolchain resolves and invokes the cross compiler for one target.
package toolchain

import (
	"context"
	"fmt"

	schema "github.com/turbokube/shipyard/pkg/schema/v1"

	"github.com/turbokube/shipyard/pkg/matrix"
)

// Toolchain produces binary bytes for one target triple.
// Implementations classify failures with the error types in this package
// so the job runner can decide what is retryable.
type Toolchain interface {
	// Resolve checks that the toolchain can produce code for triple,
	// UnsupportedError otherwise
	Resolve(triple string) error
	// Build compiles the source tree for one target and returns the binary bytes
	Build(ctx context.Context, target schema.Target, mode matrix.BuildMode) ([]byte, error)
}

// UnsupportedError means no toolchain variant can produce code for the triple.
// Fatal to the job, siblings continue.
type UnsupportedError struct {
	Triple string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("toolchain unavailable for triple %s", e.Triple)
}

// CompileError is a source build failure for one target,
// surfaced with compiler diagnostics and never retried.
type CompileError struct {
	Triple string
	Output string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("compilation failed for %s: %v\n%s", e.Triple, e.Err, e.Output)
	}
	return fmt.Sprintf("compilation failed for %s: %v", e.Triple, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// TransientError is infrastructure flakiness, eligible for bounded retry.
type TransientError struct {
	Triple string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure building %s: %v", e.Triple, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

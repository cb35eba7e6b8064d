package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/matrix"
	schema "github.com/turbokube/shipyard/pkg/schema/v1"
)

const diagnosticsTail = 4096

// Exec invokes an external cross compiler, e.g. cross or cargo.
// Non-native triples run through the configured emulator command,
// so one build host can produce every matrix cell.
type Exec struct {
	config schema.ToolchainConfig
}

var _ Toolchain = (*Exec)(nil)

func NewExec(config schema.ToolchainConfig) *Exec {
	if config.Command == "" {
		config.Command = "cross"
		config.Args = []string{"build"}
	}
	if config.Output == "" {
		config.Output = "target/{triple}/{profile}/app"
	}
	return &Exec{config: config}
}

func (e *Exec) Resolve(triple string) error {
	if len(e.config.Triples) > 0 {
		for _, t := range e.config.Triples {
			if t == triple {
				return nil
			}
		}
		return &UnsupportedError{Triple: triple}
	}
	if _, known := matrix.Platform(triple); !known {
		return &UnsupportedError{Triple: triple}
	}
	return nil
}

func (e *Exec) Build(ctx context.Context, target schema.Target, mode matrix.BuildMode) ([]byte, error) {
	if err := e.Resolve(target.Triple); err != nil {
		return nil, err
	}

	name := e.config.Command
	argv := make([]string, 0, len(e.config.Args)+len(target.BuildFlags)+4)
	if e.config.Emulator != "" && !nativeTriple(target.Triple) {
		argv = append(argv, name)
		name = e.config.Emulator
	}
	for _, a := range e.config.Args {
		argv = append(argv, expand(a, target.Triple, mode))
	}
	argv = append(argv, mode.Flags()...)
	argv = append(argv, target.BuildFlags...)
	argv = append(argv, "--target", target.Triple)

	zap.L().Info("compile",
		zap.String("triple", target.Triple),
		zap.String("mode", mode.String()),
		zap.String("command", name),
		zap.Strings("args", argv),
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, argv...)
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "SHIPYARD_RUN_ENVIRONMENT="+target.RunEnvironment)

	if err := cmd.Run(); err != nil {
		return nil, e.classify(target.Triple, err, ctx, stderr.Bytes())
	}

	out := expand(e.config.Output, target.Triple, mode)
	binary, err := os.ReadFile(out)
	if err != nil {
		// the compiler reported success, a missing output is infrastructure
		return nil, &TransientError{Triple: target.Triple, Err: err}
	}
	zap.L().Info("compiled",
		zap.String("triple", target.Triple),
		zap.String("output", out),
		zap.Int("bytes", len(binary)),
	)
	return binary, nil
}

// classify separates compiler diagnostics from infrastructure failures
func (e *Exec) classify(triple string, err error, ctx context.Context, diagnostics []byte) error {
	if ctx.Err() != nil {
		return &TransientError{Triple: triple, Err: ctx.Err()}
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return &CompileError{Triple: triple, Output: tail(diagnostics), Err: err}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &UnsupportedError{Triple: triple}
	}
	return &TransientError{Triple: triple, Err: err}
}

func tail(diagnostics []byte) string {
	s := strings.TrimSpace(string(diagnostics))
	if len(s) > diagnosticsTail {
		s = s[len(s)-diagnosticsTail:]
	}
	return s
}

func expand(tmpl string, triple string, mode matrix.BuildMode) string {
	s := strings.ReplaceAll(tmpl, "{triple}", triple)
	return strings.ReplaceAll(s, "{profile}", mode.Profile())
}

// nativeTriple reports whether the triple's architecture matches the build host
func nativeTriple(triple string) bool {
	arch := strings.SplitN(triple, "-", 2)[0]
	switch runtime.GOARCH {
	case "amd64":
		return arch == "x86_64"
	case "arm64":
		return arch == "aarch64"
	case "arm":
		return strings.HasPrefix(arch, "arm")
	case "riscv64":
		return strings.HasPrefix(arch, "riscv64")
	}
	return false
}

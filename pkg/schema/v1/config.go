package v1

type PipelineConfig struct {
	Status PipelineConfigStatus `json:"-" yaml:"-"`
	// Image describes the multi-arch image assembled from the built binaries
	Image ImageConfig `json:"image" yaml:"image"`
	// Targets is the build matrix, one entry per platform triple
	Targets []Target `json:"targets,omitempty" yaml:"targets,omitempty"`
	// Toolchain configures the cross compiler invocation shared by all targets
	Toolchain ToolchainConfig `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`
	// Release selects the optimized build profile, applied uniformly to every target
	Release bool `json:"release,omitempty" yaml:"release,omitempty"`
	// FailFast cancels remaining in-flight build jobs on the first job failure.
	// Default is to let independent jobs run to completion and report per target.
	FailFast bool `json:"failFast,omitempty" yaml:"failFast,omitempty"`
	// Concurrency bounds parallel build jobs, 0 means one worker per target
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

type PipelineConfigStatus struct {
	Template bool   // true if config is from a template
	Md5      string // config source md5 (not for template)
	Sha256   string // config source sha256 (not for template)
}

// Target is one cell of the build matrix. Triples are unique within a config.
type Target struct {
	// Triple is the platform triple the toolchain compiles for,
	// e.g. x86_64-unknown-linux-musl
	Triple string `json:"triple" yaml:"triple"`
	// BuildFlags are passed to the compiler verbatim, in order.
	// Profile flags (--release, --debug) are derived from the run mode
	// and may not appear here.
	BuildFlags []string `json:"buildFlags,omitempty" yaml:"buildFlags,omitempty"`
	// RunEnvironment identifies the environment the job runs in
	RunEnvironment string `json:"runEnvironment,omitempty" yaml:"runEnvironment,omitempty"`
}

type ImageConfig struct {
	// Base is the base image reference, a multi-arch index covering all
	// published platforms, or empty for binaries on an empty base
	Base string `json:"base,omitempty" yaml:"base,omitempty"`
	// Repository is the result image name without tag, tags come from trigger metadata
	Repository string `json:"repository" yaml:"repository"`
	// Platforms lists the published os/arch values, e.g. linux/amd64.
	// Each must map to a triple present in targets.
	Platforms []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	// BinaryPath is the in-image path of the produced binary, marked executable
	BinaryPath string `json:"binaryPath,omitempty" yaml:"binaryPath,omitempty"`
	// Entrypoint overrides the default entrypoint [binaryPath, "run"]
	Entrypoint []string `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	// Description becomes the image description annotation
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Assets optionally adds a directory of runtime files alongside the binary
	Assets *Assets `json:"assets,omitempty" yaml:"assets,omitempty"`
}

// Assets is a directory appended as-is to every platform image,
// for example ./data to /usr/share/app
type Assets struct {
	Path          string   `json:"path" yaml:"path"`
	ContainerPath string   `json:"containerPath,omitempty" yaml:"containerPath,omitempty"`
	Ignore        []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	MaxFiles      int      `json:"maxFiles,omitempty" yaml:"maxFiles,omitempty"`
	MaxSize       string   `json:"maxSize,omitempty" yaml:"maxSize,omitempty"`
}

type ToolchainConfig struct {
	// Command is the compiler executable, e.g. "cross"
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// Args are inserted before the derived profile and target flags.
	// Placeholders {triple} and {profile} are expanded.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Output is the path of the produced binary relative to the working
	// directory. Placeholders {triple} and {profile} are expanded.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// Triples restricts which platform triples the toolchain accepts,
	// empty means any triple known to the platform table
	Triples []string `json:"triples,omitempty" yaml:"triples,omitempty"`
	// Emulator is prepended to the command for triples that are not native
	// to the build host, e.g. a qemu wrapper
	Emulator string `json:"emulator,omitempty" yaml:"emulator,omitempty"`
	// Attempts bounds automatic retries on transient infrastructure
	// failures, compilation errors are never retried. Default 3.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

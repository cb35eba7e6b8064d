package schema

import (
	"os"

	"go.uber.org/zap"

	v1 "github.com/turbokube/shipyard/pkg/schema/v1"
)

// RepositoryFromEnv gets the result image name from a CI invocation
func RepositoryFromEnv() string {
	image, exists := os.LookupEnv("IMAGE")
	if exists {
		zap.L().Debug("IMAGE env found", zap.String("value", image))
	} else {
		return ""
	}
	return image
}

func RepositoryFromEnvRequired() string {
	image := RepositoryFromEnv()
	if image == "" {
		zap.L().Error("this mode requires IMAGE env")
	}
	return image
}

// Template is the config used when invoked without a config file,
// a single-target matrix for the conventional static linux build
func Template(repository string) v1.PipelineConfig {
	return v1.PipelineConfig{
		Status: v1.PipelineConfigStatus{
			Template: true,
		},
		Image: v1.ImageConfig{
			Repository: repository,
			Platforms:  []string{"linux/amd64"},
			BinaryPath: "/usr/local/bin/app",
		},
		Targets: []v1.Target{
			{Triple: "x86_64-unknown-linux-musl"},
		},
		Toolchain: v1.ToolchainConfig{
			Command: "cross",
			Args:    []string{"build"},
			Output:  "target/{triple}/{profile}/app",
		},
	}
}

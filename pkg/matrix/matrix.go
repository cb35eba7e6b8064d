// Package matrix expands the declarative target list into independent build jobs.
// Expansion is side-effect free, no network or filesystem access.
package matrix

import (
	"fmt"

	"go.uber.org/zap"

	schema "github.com/turbokube/shipyard/pkg/schema/v1"
)

// Job is one independent build unit: a target plus the run-wide mode.
type Job struct {
	Target schema.Target
	Mode   BuildMode
}

// profileFlags contradict the run-wide mode selection when they appear in
// a target's own buildFlags
var profileFlags = map[string]bool{
	"--release": true,
	"--debug":   true,
}

// Expand turns the config's target list into one job per entry.
// A malformed target fails the whole expansion, no partial result.
func Expand(config schema.PipelineConfig) ([]Job, error) {
	if len(config.Targets) == 0 {
		return nil, fmt.Errorf("matrix requires at least one target")
	}
	mode := ModeFrom(config.Release)
	seen := make(map[string]bool, len(config.Targets))
	jobs := make([]Job, len(config.Targets))
	for i, target := range config.Targets {
		if target.Triple == "" {
			return nil, fmt.Errorf("target %d has an empty triple", i)
		}
		if seen[target.Triple] {
			return nil, fmt.Errorf("duplicate target triple %s", target.Triple)
		}
		seen[target.Triple] = true
		for _, flag := range target.BuildFlags {
			if profileFlags[flag] {
				return nil, fmt.Errorf("target %s build flag %s contradicts the %s profile, profile flags are derived from the run mode", target.Triple, flag, mode)
			}
		}
		jobs[i] = Job{Target: target, Mode: mode}
	}
	zap.L().Debug("matrix expanded",
		zap.Int("jobs", len(jobs)),
		zap.String("mode", mode.String()),
	)
	return jobs, nil
}

package trigger

import (
	"os"
	"strconv"

	"go.uber.org/zap"
)

const (
	envEvent         = "SHIPYARD_EVENT"
	envBranch        = "SHIPYARD_BRANCH"
	envSemver        = "SHIPYARD_VERSION"
	envSHA           = "SHIPYARD_SHA"
	envDefaultBranch = "SHIPYARD_DEFAULT_BRANCH"
	envPR            = "SHIPYARD_PR"
)

// FromEnv reads trigger metadata as provided by the CI environment.
// The returned event is validated.
func FromEnv() (Event, error) {
	var e Event

	kindName, exists := os.LookupEnv(envEvent)
	if !exists {
		kindName = "push"
		zap.L().Debug("no event env, assuming push", zap.String("env", envEvent))
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return e, err
	}
	e.Kind = kind
	e.Branch = os.Getenv(envBranch)
	e.Semver = os.Getenv(envSemver)
	e.CommitSHA = os.Getenv(envSHA)
	e.DefaultBranch = os.Getenv(envDefaultBranch) == "true"
	if pr, exists := os.LookupEnv(envPR); exists {
		n, err := strconv.Atoi(pr)
		if err != nil {
			return e, err
		}
		e.PRNumber = n
	}

	if err := e.Validate(); err != nil {
		return e, err
	}
	zap.L().Debug("trigger",
		zap.String("kind", e.Kind.String()),
		zap.String("branch", e.Branch),
		zap.String("sha", e.ShortSHA()),
		zap.Bool("defaultBranch", e.DefaultBranch),
	)
	return e, nil
}

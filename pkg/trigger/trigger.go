// Package trigger models the version-control event that started a pipeline run.
package trigger

import (
	"fmt"
	"regexp"
)

type Kind int

const (
	Push Kind = iota
	PullRequest
	Schedule
)

func (k Kind) String() string {
	switch k {
	case Push:
		return "push"
	case PullRequest:
		return "pull-request"
	case Schedule:
		return "schedule"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps the external event name to a Kind.
// Unknown names are a configuration error.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "push":
		return Push, nil
	case "pull-request", "pull_request":
		return PullRequest, nil
	case "schedule":
		return Schedule, nil
	}
	return Push, fmt.Errorf("unknown trigger event kind %q", name)
}

var commitSHA = regexp.MustCompile(`^[0-9a-f]{7,64}$`)

// Event is the trigger metadata for one pipeline run.
// Fields beyond Kind and CommitSHA apply only to the kinds that carry them.
type Event struct {
	Kind Kind
	// Branch is the pushed branch name, empty for schedule triggers
	Branch string
	// Semver is the version string carried by a release push, e.g. "2.3.1" or "v2.3.1"
	Semver string
	// CommitSHA is the full commit hash, always present
	CommitSHA string
	// DefaultBranch is true when the run is on the repository's default branch
	DefaultBranch bool
	// PRNumber identifies the pull request for PullRequest kind
	PRNumber int
}

// Validate checks the metadata before any build starts.
func (e Event) Validate() error {
	if !commitSHA.MatchString(e.CommitSHA) {
		return fmt.Errorf("trigger commit sha must be 7-64 hex chars, got %q", e.CommitSHA)
	}
	switch e.Kind {
	case Push:
		if e.Branch == "" {
			return fmt.Errorf("push trigger requires a branch name")
		}
	case PullRequest:
		if e.PRNumber <= 0 {
			return fmt.Errorf("pull-request trigger requires a positive PR number, got %d", e.PRNumber)
		}
	case Schedule:
		// branch optional, schedules run on the default branch
	default:
		return fmt.Errorf("unknown trigger kind %d", int(e.Kind))
	}
	return nil
}

// ShortSHA is the conventional 7 char commit tag.
func (e Event) ShortSHA() string {
	if len(e.CommitSHA) < 7 {
		return e.CommitSHA
	}
	return e.CommitSHA[:7]
}

// Package tagpolicy derives the tag set for a run from trigger metadata.
// Compute is a pure function, identical events yield identical tag sets.
package tagpolicy

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/turbokube/shipyard/pkg/trigger"
)

// scheduleTag is the conventional tag for scheduled rebuilds
const scheduleTag = "nightly"

// TagSet is the set of tags and the label map attached to a published
// manifest list. Identical derived strings collapse, it is a set.
type TagSet struct {
	tags   map[string]struct{}
	Labels map[string]string
}

func (ts *TagSet) add(tag string) {
	ts.tags[tag] = struct{}{}
}

func (ts *TagSet) Has(tag string) bool {
	_, ok := ts.tags[tag]
	return ok
}

// Tags returns the tags in sorted order for deterministic pushes
func (ts *TagSet) Tags() []string {
	out := make([]string, 0, len(ts.tags))
	for t := range ts.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Compute applies every matching derivation, the result is the union:
//
//	default branch     → latest
//	schedule trigger   → nightly
//	branch push        → <branch>
//	pull request       → pr-<number>
//	semver vM.m.p      → M.m.p, M.m and M
//	always             → short commit sha
func Compute(event trigger.Event) (*TagSet, error) {
	ts := &TagSet{
		tags:   make(map[string]struct{}),
		Labels: make(map[string]string),
	}

	if event.DefaultBranch {
		ts.add("latest")
	}
	switch event.Kind {
	case trigger.Schedule:
		ts.add(scheduleTag)
	case trigger.Push:
		ts.add(sanitizeTag(event.Branch))
	case trigger.PullRequest:
		ts.add(fmt.Sprintf("pr-%d", event.PRNumber))
	}
	if event.Semver != "" {
		v, err := semver.StrictNewVersion(stripV(event.Semver))
		if err != nil {
			return nil, fmt.Errorf("trigger version %q is not semver: %w", event.Semver, err)
		}
		ts.add(fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()))
		ts.add(fmt.Sprintf("%d.%d", v.Major(), v.Minor()))
		ts.add(fmt.Sprintf("%d", v.Major()))
		ts.Labels[specsv1.AnnotationVersion] = v.String()
	} else if event.Branch != "" {
		ts.Labels[specsv1.AnnotationVersion] = sanitizeTag(event.Branch)
	}
	ts.add(event.ShortSHA())

	ts.Labels[specsv1.AnnotationRevision] = event.CommitSHA

	return ts, nil
}

func stripV(version string) string {
	if len(version) > 0 && version[0] == 'v' {
		return version[1:]
	}
	return version
}

// sanitizeTag replaces branch name characters not allowed in image tags
func sanitizeTag(s string) string {
	out := []byte(s)
	for i := range out {
		switch out[i] {
		case '/', ' ', '#', '~', '^', ':':
			out[i] = '-'
		}
	}
	return string(out)
}

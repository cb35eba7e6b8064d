package publish_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	. "github.com/onsi/gomega"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/turbokube/shipyard/pkg/publish"
	"github.com/turbokube/shipyard/pkg/tagpolicy"
	"github.com/turbokube/shipyard/pkg/trigger"
)

const sha = "0123456789abcdef0123456789abcdef01234567"

func resolveTag(ref string, t *testing.T) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		t.Fatal(err)
	}
	got, err := remote.Get(parsed, testRegistry.Config.CraneOptions.Remote...)
	if err != nil {
		return "", err
	}
	return got.Digest.String(), nil
}

func TestPublishAllTagsShareDigest(t *testing.T) {
	RegisterTestingT(t)
	logger := zaptest.NewLogger(t)
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	repository := fmt.Sprintf("%s/shipyard-test/publish-multi", testRegistry.Host)
	event := trigger.Event{
		Kind:          trigger.Push,
		Branch:        "main",
		Semver:        "2.3.1",
		CommitSHA:     sha,
		DefaultBranch: true,
	}
	tags, err := tagpolicy.Compute(event)
	Expect(err).NotTo(HaveOccurred())

	publisher, err := publish.New(repository, &testRegistry.Config)
	Expect(err).NotTo(HaveOccurred())

	artifact, err := publisher.Publish(context.Background(), testAssembly(t), tags, event)
	Expect(err).NotTo(HaveOccurred())
	Expect(artifact).NotTo(BeNil())
	Expect(artifact.TagRefs).To(HaveLen(6))

	for _, tag := range []string{"latest", "main", "2.3.1", "2.3", "2", "0123456"} {
		digest, err := resolveTag(fmt.Sprintf("%s:%s", repository, tag), t)
		Expect(err).NotTo(HaveOccurred())
		Expect(digest).To(Equal(artifact.Digest))
	}
}

func TestPublishAppliesLabels(t *testing.T) {
	RegisterTestingT(t)

	repository := fmt.Sprintf("%s/shipyard-test/publish-labels", testRegistry.Host)
	event := trigger.Event{
		Kind:          trigger.Push,
		Branch:        "main",
		CommitSHA:     sha,
		DefaultBranch: true,
	}
	tags, err := tagpolicy.Compute(event)
	Expect(err).NotTo(HaveOccurred())

	publisher, err := publish.New(repository, &testRegistry.Config)
	Expect(err).NotTo(HaveOccurred())

	assembly := testAssembly(t)
	artifact, err := publisher.Publish(context.Background(), assembly, tags, event)
	Expect(err).NotTo(HaveOccurred())
	// annotation happens before digest derivation, the pushed digest
	// differs from the unannotated assembly
	Expect(artifact.Digest).NotTo(Equal(assembly.Digest.String()))

	parsed, err := name.ParseReference(fmt.Sprintf("%s:latest", repository))
	Expect(err).NotTo(HaveOccurred())
	got, err := remote.Get(parsed, testRegistry.Config.CraneOptions.Remote...)
	Expect(err).NotTo(HaveOccurred())
	index, err := got.ImageIndex()
	Expect(err).NotTo(HaveOccurred())
	manifest, err := index.IndexManifest()
	Expect(err).NotTo(HaveOccurred())
	Expect(manifest.Annotations[specsv1.AnnotationRevision]).To(Equal(sha))
}

func TestPublishPullRequestGate(t *testing.T) {
	RegisterTestingT(t)

	repository := fmt.Sprintf("%s/shipyard-test/publish-pr", testRegistry.Host)
	event := trigger.Event{
		Kind:      trigger.PullRequest,
		PRNumber:  42,
		CommitSHA: sha,
	}
	tags, err := tagpolicy.Compute(event)
	Expect(err).NotTo(HaveOccurred())

	publisher, err := publish.New(repository, &testRegistry.Config)
	Expect(err).NotTo(HaveOccurred())

	artifact, err := publisher.Publish(context.Background(), testAssembly(t), tags, event)
	Expect(err).NotTo(HaveOccurred())
	Expect(artifact).To(BeNil())

	// the gate means zero registry writes, not just fewer tags
	for _, tag := range []string{"pr-42", "0123456"} {
		_, err := resolveTag(fmt.Sprintf("%s:%s", repository, tag), t)
		Expect(err).To(HaveOccurred())
	}
}

func TestPublishRequiresTags(t *testing.T) {
	RegisterTestingT(t)

	repository := fmt.Sprintf("%s/shipyard-test/publish-notags", testRegistry.Host)
	publisher, err := publish.New(repository, &testRegistry.Config)
	Expect(err).NotTo(HaveOccurred())

	event := trigger.Event{Kind: trigger.Push, Branch: "main", CommitSHA: sha}
	_, err = publisher.Publish(context.Background(), testAssembly(t), &tagpolicy.TagSet{}, event)
	var pub *publish.Error
	Expect(errors.As(err, &pub)).To(BeTrue())
	Expect(err).To(MatchError(ContainSubstring("at least one tag")))
}

func TestNewRejectsBadRepository(t *testing.T) {
	RegisterTestingT(t)

	_, err := publish.New("UPPERCASE/not-valid", &testRegistry.Config)
	Expect(err).To(HaveOccurred())
}

// Package publish pushes an assembled manifest list under its derived tags.
// It is the single externally observable side effect of a run.
package publish

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/assemble"
	"github.com/turbokube/shipyard/pkg/pushed"
	"github.com/turbokube/shipyard/pkg/registry"
	"github.com/turbokube/shipyard/pkg/tagpolicy"
	"github.com/turbokube/shipyard/pkg/trigger"
)

// Error is a registry rejection or network failure during push.
// Fatal to the run, a partial push is never resumed.
type Error struct {
	Tag string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Tag, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Publisher struct {
	repository name.Repository
	registry   *registry.RegistryConfig
}

func New(repository string, registryConfig *registry.RegistryConfig) (*Publisher, error) {
	repo, err := name.NewRepository(repository)
	if err != nil {
		return nil, fmt.Errorf("parse repository %s: %w", repository, err)
	}
	return &Publisher{
		repository: repo,
		registry:   registryConfig,
	}, nil
}

// Publish pushes the manifest list with every derived tag, unless the
// trigger is a pull request. Pull-request runs build and validate but must
// never publish, that gate is hygiene, not optimization. Returns nil
// without error when the gate skips the push.
func (p *Publisher) Publish(ctx context.Context, assembly *assemble.Assembly, tags *tagpolicy.TagSet, event trigger.Event) (*pushed.Artifact, error) {
	if event.Kind == trigger.PullRequest {
		zap.L().Info("pull request trigger, publish skipped",
			zap.Int("pr", event.PRNumber),
			zap.String("digest", assembly.Digest.String()),
		)
		return nil, nil
	}

	tagged := tags.Tags()
	if len(tagged) == 0 {
		return nil, &Error{Err: fmt.Errorf("publication requires at least one tag")}
	}

	index := assembly.Index
	if len(tags.Labels) > 0 {
		index = mutate.Annotations(index, tags.Labels).(v1.ImageIndex)
	}
	digest, err := index.Digest()
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("index digest: %w", err)}
	}
	mediaType, err := index.MediaType()
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("index media type: %w", err)}
	}

	options := append([]remote.Option{remote.WithContext(ctx)}, p.registry.CraneOptions.Remote...)

	// the first write uploads layers and child manifests, the remaining
	// tags only need the index manifest put
	first := p.repository.Tag(tagged[0])
	zap.L().Info("pushing",
		zap.String("ref", first.String()),
		zap.String("digest", digest.String()),
	)
	if err := remote.WriteIndex(first, index, options...); err != nil {
		zap.L().Error("push", zap.String("tag", tagged[0]), zap.Error(err))
		return nil, &Error{Tag: tagged[0], Err: err}
	}

	taggable, err := assemble.NewTaggableIndex(index)
	if err != nil {
		return nil, &Error{Err: err}
	}
	for _, tag := range tagged[1:] {
		ref := p.repository.Tag(tag)
		if err := remote.Put(ref, taggable, options...); err != nil {
			zap.L().Error("tag put", zap.String("tag", tag), zap.Error(err))
			return nil, &Error{Tag: tag, Err: err}
		}
		zap.L().Debug("tagged", zap.String("ref", ref.String()))
	}

	artifact, err := pushed.NewIndexArtifact(p.repository.Name(), tagged, digest, mediaType, assembly.Platforms)
	if err != nil {
		return nil, &Error{Err: err}
	}
	zap.L().Info("published",
		zap.String("image", artifact.ImageName),
		zap.Strings("tags", tagged),
		zap.String("digest", digest.String()),
	)
	return artifact, nil
}

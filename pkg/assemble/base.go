package assemble

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/match"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/registry"
)

// baseIndex is the fetched multi-arch base, resolved once per assembly
type baseIndex struct {
	ref   name.Reference
	index v1.ImageIndex
}

func fetchBaseIndex(base string, registryConfig *registry.RegistryConfig) (*baseIndex, error) {
	ref, err := name.ParseReference(base)
	if err != nil {
		return nil, fmt.Errorf("parse base %s: %w", base, err)
	}

	zap.L().Info("fetching", zap.String("base", ref.String()))
	got, err := remote.Get(ref, registryConfig.CraneOptions.Remote...)
	if err != nil {
		return nil, fmt.Errorf("pulling %s: %w", ref.String(), err)
	}
	if !got.MediaType.IsIndex() {
		return nil, fmt.Errorf("base must be a multi-arch index, got %s for %s", got.MediaType, base)
	}
	index, err := got.ImageIndex()
	if err != nil {
		return nil, fmt.Errorf("image index from %s %s: %w", got.MediaType, base, err)
	}
	return &baseIndex{ref: ref, index: index}, nil
}

// child selects the base image for one platform, it is an error when the
// base index has no manifest for that platform
func (b *baseIndex) child(platform v1.Platform) (v1.Image, error) {
	manifest, err := b.index.IndexManifest()
	if err != nil {
		return nil, fmt.Errorf("index manifest from %s: %w", b.ref.String(), err)
	}
	matcher := match.Platforms(platform)
	for _, d := range manifest.Manifests {
		if d.Platform == nil {
			continue
		}
		if !d.MediaType.IsImage() {
			zap.L().Debug("skipping non-image manifest",
				zap.String("mediaType", string(d.MediaType)),
				zap.String("platform", d.Platform.String()),
			)
			continue
		}
		if !matcher(d) {
			continue
		}
		return b.index.Image(d.Digest)
	}
	return nil, fmt.Errorf("base %s has no manifest for platform %s", b.ref.String(), platform.String())
}

// baseImage resolves the per-platform starting image: a child of the
// configured base index, or an empty OCI image when no base is configured
func (a *Assembler) baseImage(platform v1.Platform) (v1.Image, v1.Hash, error) {
	var base v1.Image
	if a.base == nil {
		zap.L().Debug("base unspecified, using empty image", zap.String("platform", platform.String()))
		base = empty.Image
		base = mutate.MediaType(base, types.OCIManifestSchema1)
		base = mutate.ConfigMediaType(base, types.OCIConfigJSON)
	} else {
		var err error
		base, err = a.base.child(platform)
		if err != nil {
			return nil, v1.Hash{}, err
		}
	}
	digest, err := base.Digest()
	if err != nil {
		return nil, v1.Hash{}, fmt.Errorf("base digest for %s: %w", platform.String(), err)
	}
	return base, digest, nil
}

// Package assemble turns staged binaries into one multi-arch image index.
// Layer and manifest construction is pure data manipulation, so any build
// host can assemble layers for any target architecture.
package assemble

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/types"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/artifact"
	"github.com/turbokube/shipyard/pkg/layers"
	"github.com/turbokube/shipyard/pkg/matrix"
	"github.com/turbokube/shipyard/pkg/registry"
	schema "github.com/turbokube/shipyard/pkg/schema/v1"
)

const (
	defaultBinaryPath  = "/usr/local/bin/app"
	defaultWaitTimeout = 2 * time.Minute
)

// MissingArtifactError means a required triple's build job did not stage a
// binary, assembly fails as a whole.
type MissingArtifactError struct {
	OsArch string
	Triple string
	Err    error
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing artifact for platform %s (triple %s): %v", e.OsArch, e.Triple, e.Err)
}

func (e *MissingArtifactError) Unwrap() error { return e.Err }

// Assembly is the assembled but not yet published manifest list
type Assembly struct {
	Index     v1.ImageIndex
	Digest    v1.Hash
	Platforms []v1.Platform
	// BaseRef is the configured base image reference, empty for empty base
	BaseRef string
}

type Assembler struct {
	config   schema.PipelineConfig
	registry *registry.RegistryConfig
	store    *artifact.Store
	// WaitTimeout bounds how long assembly waits for each staged artifact
	WaitTimeout time.Duration

	base  *baseIndex
	cache *layerCache
}

func New(config schema.PipelineConfig, registryConfig *registry.RegistryConfig, store *artifact.Store) (*Assembler, error) {
	if config.Image.Repository == "" {
		return nil, fmt.Errorf("image repository must be set")
	}
	if len(config.Image.Platforms) == 0 {
		return nil, fmt.Errorf("image platforms must list at least one os/arch")
	}
	return &Assembler{
		config:      config,
		registry:    registryConfig,
		store:       store,
		WaitTimeout: defaultWaitTimeout,
		cache:       newLayerCache(),
	}, nil
}

// Assemble waits for every required artifact, then builds one image per
// platform on the common base and merges them into a single index.
// Layer construction never starts while a required artifact is absent.
func (a *Assembler) Assemble(ctx context.Context) (*Assembly, error) {
	triples := make([]string, len(a.config.Targets))
	for i, t := range a.config.Targets {
		triples[i] = t.Triple
	}

	type member struct {
		platform v1.Platform
		artifact *artifact.Artifact
	}
	members := make([]member, 0, len(a.config.Image.Platforms))

	for _, osArch := range a.config.Image.Platforms {
		platform, err := v1.ParsePlatform(osArch)
		if err != nil {
			return nil, fmt.Errorf("image platform %q: %w", osArch, err)
		}
		triple, err := matrix.TripleFor(osArch, triples)
		if err != nil {
			return nil, err
		}
		waitCtx, cancel := context.WithTimeout(ctx, a.WaitTimeout)
		staged, err := a.store.WaitFor(waitCtx, triple)
		cancel()
		if err != nil {
			zap.L().Error("artifact wait",
				zap.String("platform", osArch),
				zap.String("triple", triple),
				zap.Error(err),
			)
			return nil, &MissingArtifactError{OsArch: osArch, Triple: triple, Err: err}
		}
		members = append(members, member{platform: *platform, artifact: staged})
	}

	if a.config.Image.Base != "" {
		base, err := fetchBaseIndex(a.config.Image.Base, a.registry)
		if err != nil {
			return nil, err
		}
		a.base = base
	}

	var assets v1.Layer
	if a.config.Image.Assets != nil {
		var err error
		assets, err = layers.FromAssets(*a.config.Image.Assets)
		if err != nil {
			return nil, fmt.Errorf("assets layer: %w", err)
		}
	}

	index := mutate.IndexMediaType(empty.Index, types.OCIImageIndex)
	platforms := make([]v1.Platform, 0, len(members))
	for _, m := range members {
		img, err := a.platformImage(m.platform, m.artifact, assets)
		if err != nil {
			return nil, err
		}
		platform := m.platform
		index = mutate.AppendManifests(index, mutate.IndexAddendum{
			Add: img,
			Descriptor: v1.Descriptor{
				Platform: &platform,
			},
		})
		platforms = append(platforms, m.platform)
	}

	if a.config.Image.Description != "" {
		index = mutate.Annotations(index, map[string]string{
			specsv1.AnnotationDescription: a.config.Image.Description,
		}).(v1.ImageIndex)
	}

	digest, err := index.Digest()
	if err != nil {
		return nil, fmt.Errorf("index digest: %w", err)
	}
	zap.L().Info("assembled",
		zap.String("digest", digest.String()),
		zap.Int("manifests", len(platforms)),
	)

	return &Assembly{
		Index:     index,
		Digest:    digest,
		Platforms: platforms,
		BaseRef:   a.config.Image.Base,
	}, nil
}

// platformImage builds one architecture's image: base, binary layer at the
// canonical path, optional assets, config for the target platform.
func (a *Assembler) platformImage(platform v1.Platform, staged *artifact.Artifact, assets v1.Layer) (v1.Image, error) {
	base, baseDigest, err := a.baseImage(platform)
	if err != nil {
		return nil, err
	}

	binaryPath := a.config.Image.BinaryPath
	if binaryPath == "" {
		binaryPath = defaultBinaryPath
	}
	layer, err := a.cache.executable(baseDigest, staged.Binary, binaryPath)
	if err != nil {
		return nil, err
	}

	appended := []v1.Layer{layer}
	if assets != nil {
		appended = append(appended, assets)
	}
	img, err := mutate.AppendLayers(base, appended...)
	if err != nil {
		return nil, fmt.Errorf("append layers for %s: %w", platform.String(), err)
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("config file for %s: %w", platform.String(), err)
	}
	cfg := cf.DeepCopy()
	cfg.OS = platform.OS
	cfg.Architecture = platform.Architecture
	cfg.Variant = platform.Variant
	entrypoint := a.config.Image.Entrypoint
	if len(entrypoint) == 0 {
		// the produced binary serves "run" as its default container invocation
		entrypoint = []string{binaryPath, "run"}
	}
	cfg.Config.Entrypoint = entrypoint
	img, err = mutate.ConfigFile(img, cfg)
	if err != nil {
		return nil, fmt.Errorf("mutate config for %s: %w", platform.String(), err)
	}

	annotations := map[string]string{
		specsv1.AnnotationBaseImageDigest: baseDigest.String(),
	}
	if ref := a.config.Image.Base; ref != "" {
		if parsed, err := name.ParseReference(ref); err == nil {
			annotations[specsv1.AnnotationBaseImageName] = parsed.Context().Name()
		}
	}
	img = mutate.Annotations(img, annotations).(v1.Image)

	zap.L().Debug("platform image",
		zap.String("platform", platform.String()),
		zap.String("triple", staged.Triple),
		zap.String("base", baseDigest.String()),
	)
	return img, nil
}

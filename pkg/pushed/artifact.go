package pushed

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/distribution/reference"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"go.uber.org/zap"
)

// Artifact represents what we need to know (without manifest fetch) about a
// published manifest list
type Artifact struct {
	// ImageName without tag or digest used to reference the artifact in deployment resources
	ImageName string `json:"imageName"`
	// TagRefs are the pushed references, one per derived tag
	TagRefs []string `json:"tags"`
	// Digest is the manifest list digest shared by every tag
	Digest string `json:"digest"`
	// MediaType of the pushed index
	MediaType types.MediaType `json:"mediaType"`
	// Platforms covered by the manifest list
	Platforms []string `json:"platforms"`
}

// NewIndexArtifact describes a pushed index. The repository is validated
// as a registry reference before it ends up in machine-readable output.
func NewIndexArtifact(repository string, tags []string, digest v1.Hash, mediaType types.MediaType, platforms []v1.Platform) (*Artifact, error) {
	full := fmt.Sprintf("%s@%s", repository, digest.String())
	ref, err := reference.Parse(full)
	if err != nil {
		zap.L().Error("parse", zap.String("ref", full), zap.Error(err))
		return nil, err
	}
	named, ok := ref.(reference.Named)
	if !ok {
		return nil, fmt.Errorf("reference %s has no name", ref.String())
	}

	tagRefs := make([]string, 0, len(tags))
	for _, t := range tags {
		tagRefs = append(tagRefs, fmt.Sprintf("%s:%s@%s", repository, t, digest.String()))
	}
	pf := make([]string, 0, len(platforms))
	for _, p := range platforms {
		pf = append(pf, p.String())
	}

	return &Artifact{
		ImageName: named.Name(),
		TagRefs:   tagRefs,
		Digest:    digest.String(),
		MediaType: mediaType,
		Platforms: pf,
	}, nil
}

// Print writes the tag@digest for each pushed reference
func (a *Artifact) Print() {
	if a == nil {
		return
	}
	for _, ref := range a.TagRefs {
		fmt.Println(ref)
	}
}

func (a *Artifact) WriteJSON(f *os.File) error {
	j, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = f.Write(j)
	return err
}

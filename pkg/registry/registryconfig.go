package registry

import (
	"regexp"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"go.uber.org/zap"

	schema "github.com/turbokube/shipyard/pkg/schema/v1"
)

var (
	insecureAccessRefs = regexp.MustCompile(`^[^/]+\.local(:[0-9]+)?/`)
)

// RegistryConfig carries remote access options for base pulls and result
// pushes. Credentials come from the ambient keychain, the credential
// collaborator is out of scope here.
type RegistryConfig struct {
	CraneOptions crane.Options
}

func New(config schema.PipelineConfig) (*RegistryConfig, error) {
	c := &RegistryConfig{}
	c.CraneOptions = crane.Options{
		Remote: []remote.Option{
			remote.WithAuthFromKeychain(authn.DefaultKeychain),
		},
		Keychain: authn.DefaultKeychain,
	}

	if insecureAccessRefs.MatchString(config.Image.Base) {
		zap.L().Debug("insecure access enabled", zap.String("base", config.Image.Base))
		crane.Insecure(&c.CraneOptions)
	} else if insecureAccessRefs.MatchString(config.Image.Repository) {
		zap.L().Debug("insecure access enabled", zap.String("repository", config.Image.Repository))
		crane.Insecure(&c.CraneOptions)
	}

	return c, nil
}

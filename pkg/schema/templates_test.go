package schema_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/turbokube/shipyard/pkg/schema"
)

func TestTemplate(t *testing.T) {
	RegisterTestingT(t)

	config := schema.Template("registry.example.com/org/app")
	Expect(config.Status.Template).To(BeTrue())
	Expect(config.Image.Repository).To(Equal("registry.example.com/org/app"))
	Expect(config.Image.Platforms).To(Equal([]string{"linux/amd64"}))
	Expect(config.Targets).To(HaveLen(1))
	Expect(config.Targets[0].Triple).To(Equal("x86_64-unknown-linux-musl"))
	Expect(config.Toolchain.Command).To(Equal("cross"))
}

func TestRepositoryFromEnv(t *testing.T) {
	RegisterTestingT(t)

	t.Setenv("IMAGE", "registry.example.com/org/app")
	Expect(schema.RepositoryFromEnv()).To(Equal("registry.example.com/org/app"))
}

func TestRepositoryFromEnvUnset(t *testing.T) {
	RegisterTestingT(t)

	t.Setenv("IMAGE", "")
	Expect(schema.RepositoryFromEnv()).To(Equal(""))
}

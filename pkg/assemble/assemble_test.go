package assemble_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	. "github.com/onsi/gomega"
	specsv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/turbokube/shipyard/pkg/artifact"
	"github.com/turbokube/shipyard/pkg/assemble"
	"github.com/turbokube/shipyard/pkg/matrix"
	schema "github.com/turbokube/shipyard/pkg/schema/v1"
)

func testConfig() schema.PipelineConfig {
	return schema.PipelineConfig{
		Image: schema.ImageConfig{
			Repository: fmt.Sprintf("%s/shipyard-test/app", testRegistry.Host),
			Platforms:  []string{"linux/amd64", "linux/arm64"},
		},
		Targets: []schema.Target{
			{Triple: "x86_64-unknown-linux-musl"},
			{Triple: "aarch64-unknown-linux-musl"},
		},
	}
}

func stagedStore() *artifact.Store {
	store := artifact.NewStore()
	store.Put(&artifact.Artifact{
		Triple: "x86_64-unknown-linux-musl",
		Mode:   matrix.Release,
		Binary: []byte("elf-amd64"),
	})
	store.Put(&artifact.Artifact{
		Triple: "aarch64-unknown-linux-musl",
		Mode:   matrix.Release,
		Binary: []byte("elf-arm64"),
	})
	store.Finish()
	return store
}

// platformImage resolves the child image for one platform of the assembly
func platformImage(assembly *assemble.Assembly, osArch string, t *testing.T) v1.Image {
	manifest, err := assembly.Index.IndexManifest()
	Expect(err).NotTo(HaveOccurred())
	for _, d := range manifest.Manifests {
		if d.Platform != nil && d.Platform.String() == osArch {
			img, err := assembly.Index.Image(d.Digest)
			Expect(err).NotTo(HaveOccurred())
			return img
		}
	}
	t.Fatalf("no manifest for %s", osArch)
	return nil
}

func TestAssembleEmptyBase(t *testing.T) {
	RegisterTestingT(t)
	logger := zaptest.NewLogger(t)
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	config := testConfig()
	config.Image.Description = "test app"
	assembler, err := assemble.New(config, &testRegistry.Config, stagedStore())
	Expect(err).NotTo(HaveOccurred())

	assembly, err := assembler.Assemble(context.Background())
	Expect(err).NotTo(HaveOccurred())
	Expect(assembly.Platforms).To(HaveLen(2))
	Expect(assembly.BaseRef).To(BeEmpty())

	mediaType, err := assembly.Index.MediaType()
	Expect(err).NotTo(HaveOccurred())
	Expect(mediaType).To(Equal(types.OCIImageIndex))

	manifest, err := assembly.Index.IndexManifest()
	Expect(err).NotTo(HaveOccurred())
	Expect(manifest.Manifests).To(HaveLen(2))
	Expect(manifest.Annotations[specsv1.AnnotationDescription]).To(Equal("test app"))

	img := platformImage(assembly, "linux/arm64", t)
	cf, err := img.ConfigFile()
	Expect(err).NotTo(HaveOccurred())
	Expect(cf.OS).To(Equal("linux"))
	Expect(cf.Architecture).To(Equal("arm64"))
	Expect(cf.Config.Entrypoint).To(Equal([]string{"/usr/local/bin/app", "run"}))

	imageLayers, err := img.Layers()
	Expect(err).NotTo(HaveOccurred())
	Expect(imageLayers).To(HaveLen(1))
}

func TestAssembleDeterministicDigest(t *testing.T) {
	RegisterTestingT(t)

	a1, err := assemble.New(testConfig(), &testRegistry.Config, stagedStore())
	Expect(err).NotTo(HaveOccurred())
	r1, err := a1.Assemble(context.Background())
	Expect(err).NotTo(HaveOccurred())

	a2, err := assemble.New(testConfig(), &testRegistry.Config, stagedStore())
	Expect(err).NotTo(HaveOccurred())
	r2, err := a2.Assemble(context.Background())
	Expect(err).NotTo(HaveOccurred())

	Expect(r1.Digest).To(Equal(r2.Digest))
}

func TestAssembleMissingArtifact(t *testing.T) {
	RegisterTestingT(t)

	store := artifact.NewStore()
	store.Put(&artifact.Artifact{
		Triple: "x86_64-unknown-linux-musl",
		Binary: []byte("elf-amd64"),
	})
	store.Finish()

	assembler, err := assemble.New(testConfig(), &testRegistry.Config, store)
	Expect(err).NotTo(HaveOccurred())
	assembler.WaitTimeout = 100 * time.Millisecond

	_, err = assembler.Assemble(context.Background())
	var missing *assemble.MissingArtifactError
	Expect(errors.As(err, &missing)).To(BeTrue())
	Expect(missing.OsArch).To(Equal("linux/arm64"))
	Expect(missing.Triple).To(Equal("aarch64-unknown-linux-musl"))
	Expect(errors.Is(err, artifact.ErrNotFound)).To(BeTrue())
}

func TestAssembleWithBase(t *testing.T) {
	RegisterTestingT(t)

	config := testConfig()
	config.Image.Base = testBase
	assembler, err := assemble.New(config, &testRegistry.Config, stagedStore())
	Expect(err).NotTo(HaveOccurred())

	assembly, err := assembler.Assemble(context.Background())
	Expect(err).NotTo(HaveOccurred())
	Expect(assembly.BaseRef).To(Equal(testBase))

	img := platformImage(assembly, "linux/amd64", t)
	imageLayers, err := img.Layers()
	Expect(err).NotTo(HaveOccurred())
	// base os-release layer plus the binary layer
	Expect(imageLayers).To(HaveLen(2))

	manifest, err := img.Manifest()
	Expect(err).NotTo(HaveOccurred())
	Expect(manifest.Annotations).To(HaveKey(specsv1.AnnotationBaseImageDigest))
	Expect(manifest.Annotations).To(HaveKey(specsv1.AnnotationBaseImageName))
}

func TestAssembleBaseMissingPlatform(t *testing.T) {
	RegisterTestingT(t)

	config := testConfig()
	config.Image.Base = testBase
	config.Image.Platforms = append(config.Image.Platforms, "linux/riscv64")
	config.Targets = append(config.Targets, schema.Target{Triple: "riscv64gc-unknown-linux-gnu"})

	store := stagedStore()
	store.Put(&artifact.Artifact{
		Triple: "riscv64gc-unknown-linux-gnu",
		Binary: []byte("elf-riscv64"),
	})

	assembler, err := assemble.New(config, &testRegistry.Config, store)
	Expect(err).NotTo(HaveOccurred())

	_, err = assembler.Assemble(context.Background())
	Expect(err).To(MatchError(ContainSubstring("no manifest for platform linux/riscv64")))
}

func TestAssembleCustomBinaryPathAndEntrypoint(t *testing.T) {
	RegisterTestingT(t)

	config := testConfig()
	config.Image.BinaryPath = "/opt/bin/tool"
	config.Image.Entrypoint = []string{"/opt/bin/tool", "serve", "--verbose"}
	assembler, err := assemble.New(config, &testRegistry.Config, stagedStore())
	Expect(err).NotTo(HaveOccurred())

	assembly, err := assembler.Assemble(context.Background())
	Expect(err).NotTo(HaveOccurred())

	img := platformImage(assembly, "linux/amd64", t)
	cf, err := img.ConfigFile()
	Expect(err).NotTo(HaveOccurred())
	Expect(cf.Config.Entrypoint).To(Equal([]string{"/opt/bin/tool", "serve", "--verbose"}))
}

func TestAssembleRejectsUnmappedPlatform(t *testing.T) {
	RegisterTestingT(t)

	config := testConfig()
	config.Image.Platforms = []string{"linux/amd64", "linux/arm/v7"}

	assembler, err := assemble.New(config, &testRegistry.Config, stagedStore())
	Expect(err).NotTo(HaveOccurred())
	_, err = assembler.Assemble(context.Background())
	Expect(err).To(MatchError(ContainSubstring("no target triple produces platform linux/arm/v7")))
}

func TestNewRequiresRepositoryAndPlatforms(t *testing.T) {
	RegisterTestingT(t)

	config := testConfig()
	config.Image.Repository = ""
	_, err := assemble.New(config, &testRegistry.Config, artifact.NewStore())
	Expect(err).To(MatchError(ContainSubstring("repository")))

	config = testConfig()
	config.Image.Platforms = nil
	_, err = assemble.New(config, &testRegistry.Config, artifact.NewStore())
	Expect(err).To(MatchError(ContainSubstring("platforms")))
}

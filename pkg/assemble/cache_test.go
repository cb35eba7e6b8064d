package assemble

import (
	"strings"
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	. "github.com/onsi/gomega"
)

func testHash(c string) v1.Hash {
	return v1.Hash{Algorithm: "sha256", Hex: strings.Repeat(c, 64)}
}

func TestLayerCacheHit(t *testing.T) {
	RegisterTestingT(t)

	cache := newLayerCache()
	first, err := cache.executable(testHash("a"), []byte("elf"), "/usr/local/bin/app")
	Expect(err).NotTo(HaveOccurred())
	second, err := cache.executable(testHash("a"), []byte("elf"), "/usr/local/bin/app")
	Expect(err).NotTo(HaveOccurred())

	// a hit returns the memoized layer, not an equivalent rebuild
	Expect(second).To(BeIdenticalTo(first))
}

func TestLayerCacheKeying(t *testing.T) {
	RegisterTestingT(t)

	cache := newLayerCache()
	base, err := cache.executable(testHash("a"), []byte("elf"), "/usr/local/bin/app")
	Expect(err).NotTo(HaveOccurred())

	otherBinary, err := cache.executable(testHash("a"), []byte("elf2"), "/usr/local/bin/app")
	Expect(err).NotTo(HaveOccurred())
	Expect(otherBinary).NotTo(BeIdenticalTo(base))

	otherPath, err := cache.executable(testHash("a"), []byte("elf"), "/usr/bin/app")
	Expect(err).NotTo(HaveOccurred())
	Expect(otherPath).NotTo(BeIdenticalTo(base))

	otherBase, err := cache.executable(testHash("b"), []byte("elf"), "/usr/local/bin/app")
	Expect(err).NotTo(HaveOccurred())
	Expect(otherBase).NotTo(BeIdenticalTo(base))
}

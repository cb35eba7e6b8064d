package matrix

import "fmt"

// triplePlatforms is the fixed mapping from platform triple to the os/arch
// a manifest list publishes. Triples without a row can still be built,
// but can not be selected for image assembly.
var triplePlatforms = map[string]string{
	"x86_64-unknown-linux-gnu":       "linux/amd64",
	"x86_64-unknown-linux-musl":      "linux/amd64",
	"aarch64-unknown-linux-gnu":      "linux/arm64",
	"aarch64-unknown-linux-musl":     "linux/arm64",
	"armv7-unknown-linux-gnueabihf":  "linux/arm/v7",
	"armv7-unknown-linux-musleabihf": "linux/arm/v7",
	"arm-unknown-linux-musleabihf":   "linux/arm/v6",
	"riscv64gc-unknown-linux-gnu":    "linux/riscv64",
}

// Platform returns the os/arch for a triple, false if the triple is unknown
func Platform(triple string) (string, bool) {
	p, ok := triplePlatforms[triple]
	return p, ok
}

// TripleFor resolves the triple that produces binaries for osArch,
// restricted to the given targets. Exactly one target must match.
func TripleFor(osArch string, targets []string) (string, error) {
	var found string
	for _, triple := range targets {
		if triplePlatforms[triple] != osArch {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("platform %s maps to both %s and %s", osArch, found, triple)
		}
		found = triple
	}
	if found == "" {
		return "", fmt.Errorf("no target triple produces platform %s", osArch)
	}
	return found, nil
}

package provision

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// ArtifactSet partitions the distributable files found in a cloned
// prerequisites workspace. Recomputed on every provisioning attempt, never
// persisted. Zero entries of either kind is a valid (empty) install.
type ArtifactSet struct {
	Wheels       []string
	Requirements []string
}

// Empty reports whether there is nothing to install.
func (s ArtifactSet) Empty() bool {
	return len(s.Wheels) == 0 && len(s.Requirements) == 0
}

// discoverArtifacts scans a workspace for wheel files and requirements files.
// Results are sorted so install order is deterministic.
func discoverArtifacts(dir string) (ArtifactSet, error) {
	wheels, err := filepath.Glob(filepath.Join(dir, "*.whl"))
	if err != nil {
		return ArtifactSet{}, fmt.Errorf("scan for wheel files: %w", err)
	}
	requirements, err := filepath.Glob(filepath.Join(dir, "requirements*.txt"))
	if err != nil {
		return ArtifactSet{}, fmt.Errorf("scan for requirements files: %w", err)
	}

	sort.Strings(wheels)
	sort.Strings(requirements)
	return ArtifactSet{Wheels: wheels, Requirements: requirements}, nil
}

// manifestHash computes a BLAKE3 hash over the names and contents of every
// artifact, giving the journal a stable fingerprint of what a build tag
// actually installed.
func manifestHash(set ArtifactSet) (string, error) {
	h := blake3.New()
	for _, path := range append(append([]string{}, set.Wheels...), set.Requirements...) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read artifact %s: %w", filepath.Base(path), err)
		}
		sum := blake3.Sum256(data)
		fmt.Fprintf(h, "%s %s\n", filepath.Base(path), hex.EncodeToString(sum[:]))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

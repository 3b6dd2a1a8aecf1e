package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ArtifactKind distinguishes a per-commit patch from a whole-PR diff
type ArtifactKind int

const (
	// KindPatch is a mail-format patch produced from one commit
	KindPatch ArtifactKind = iota
	// KindDiff is a unified diff of the whole PR
	KindDiff
)

func (k ArtifactKind) String() string {
	if k == KindDiff {
		return "diff"
	}
	return "patch"
}

// PatchArtifact is a file produced by export and consumed by the applier
type PatchArtifact struct {
	// Kind of artifact
	Kind ArtifactKind
	// Number is the sequence number (0 for diffs)
	Number int
	// Name is the file name (e.g. "0003-fix-invoice-rounding.patch")
	Name string
	// LocalPath is where export wrote the file
	LocalPath string
	// RemotePath is where transfer placed the file, empty until uploaded
	RemotePath string
	// Commit is the SHA the patch was produced from (empty for diffs)
	Commit string
	// Files are the repository paths touched by the artifact
	Files []string
}

// PatchFileName builds the sequence file name for a patch
func PatchFileName(number int, slug string) string {
	if slug == "" {
		return fmt.Sprintf("%04d.patch", number)
	}
	return fmt.Sprintf("%04d-%s.patch", number, slug)
}

// DiffFileName builds the file name for a whole-PR diff
func DiffFileName(pr int) string {
	return fmt.Sprintf("%d.diff", pr)
}

// ParsePatchNumber extracts the leading sequence number from a patch file name
func ParsePatchNumber(name string) (int, bool) {
	prefix, _, _ := strings.Cut(name, "-")
	prefix = strings.TrimSuffix(prefix, ".patch")
	if prefix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Package update compares the running build with the latest published release.
package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/wahlandcase/applypr/internal/errs"

	"github.com/blang/semver/v4"
)

// Release represents a GitHub release
type Release struct {
	TagName string
}

// ReleaseSource returns the tag of the latest release of "owner/repo"
type ReleaseSource interface {
	LatestRelease(ctx context.Context, ownerRepo string) (string, error)
}

// CheckForUpdate queries the latest release and returns it if newer than current
func CheckForUpdate(ctx context.Context, src ReleaseSource, currentVersion, repo string) (*Release, error) {
	tag, err := src.LatestRelease(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("latest release: %w", err)
	}
	if tag == "" {
		return nil, nil
	}
	latest := &Release{TagName: tag}

	// "dev" version is always older than any release
	if normalizeVersion(currentVersion) == "dev" {
		return latest, nil
	}
	if newer(tag, currentVersion) {
		return latest, nil
	}
	return nil, nil
}

// Require fails with a precondition error when a newer release exists
func Require(ctx context.Context, src ReleaseSource, currentVersion, repo string) error {
	latest, err := CheckForUpdate(ctx, src, currentVersion, repo)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	return errs.Newf(errs.Precondition, "version check", "your version %s is outdated, upgrade to %s with: %s",
		VersionDisplay(currentVersion), VersionDisplay(latest.TagName), InstallCommand(repo, latest.TagName))
}

// InstallCommand is the command that installs release tag
func InstallCommand(repo, tag string) string {
	return fmt.Sprintf("go install github.com/%s/cmd/applypr@%s", repo, tag)
}

func newer(latest, current string) bool {
	lv, errL := semver.ParseTolerant(normalizeVersion(latest))
	cv, errC := semver.ParseTolerant(normalizeVersion(current))
	if errL != nil || errC != nil {
		return normalizeVersion(latest) > normalizeVersion(current)
	}
	return lv.GT(cv)
}

// normalizeVersion strips version prefixes for comparison
func normalizeVersion(v string) string {
	v = strings.TrimPrefix(v, "applypr/")
	v = strings.TrimPrefix(v, "v")
	return v
}

// VersionDisplay returns a formatted version string for display
func VersionDisplay(tag string) string {
	return normalizeVersion(tag)
}

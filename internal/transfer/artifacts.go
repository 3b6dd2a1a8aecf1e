package transfer

import (
	"bufio"
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/export"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"
)

// Marker extracts the commit SHA from the first line of a mail patch
// ("From <sha> Mon Sep 17 00:00:00 2001")
func Marker(firstLine string) string {
	fields := strings.Fields(firstLine)
	if len(fields) < 2 || fields[0] != "From" {
		return ""
	}
	return fields[1]
}

// AfterCommit drops every artifact up to and including the one whose
// marker matches sha. Abbreviated SHAs of 7 or more characters match.
func AfterCommit(arts []models.PatchArtifact, sha string) ([]models.PatchArtifact, error) {
	for i, art := range arts {
		if models.SameSHA(art.Commit, sha) {
			return arts[i+1:], nil
		}
	}
	return nil, errs.Newf(errs.ResumePointNotFound, "resume", "commit %s is not among the exported patches", sha)
}

// FromNumber keeps patches numbered n or above. Diffs are kept as is.
func FromNumber(arts []models.PatchArtifact, n int) []models.PatchArtifact {
	var out []models.PatchArtifact
	for _, art := range arts {
		if art.Kind == models.KindDiff || art.Number >= n {
			out = append(out, art)
		}
	}
	return out
}

// LocalArtifacts reads back a previous export from dir
func LocalArtifacts(dir string) ([]models.PatchArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.WithPath(errs.Upload, "read patch dir", dir, err)
	}

	var arts []models.PatchArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		switch {
		case strings.HasSuffix(e.Name(), ".patch"):
			n, ok := models.ParsePatchNumber(e.Name())
			if !ok {
				continue
			}
			content, err := os.ReadFile(p)
			if err != nil {
				return nil, errs.WithPath(errs.Upload, "read patch", p, err)
			}
			files, _ := export.TouchedFiles(content)
			arts = append(arts, models.PatchArtifact{
				Kind:      models.KindPatch,
				Number:    n,
				Name:      e.Name(),
				LocalPath: p,
				Commit:    Marker(firstLine(content)),
				Files:     files,
			})
		case strings.HasSuffix(e.Name(), ".diff"):
			content, err := os.ReadFile(p)
			if err != nil {
				return nil, errs.WithPath(errs.Upload, "read diff", p, err)
			}
			files, _ := export.TouchedFiles(content)
			arts = append(arts, models.PatchArtifact{Kind: models.KindDiff, Name: e.Name(), LocalPath: p, Files: files})
		}
	}
	sortArtifacts(arts)
	return arts, nil
}

// Remote lists the artifacts already present in dir on the host. Touched
// files are left empty; the applier reads them on demand.
func Remote(ctx context.Context, exec *remote.Exec, dir string, diff bool) ([]models.PatchArtifact, error) {
	q := exec.Quiet()
	out, err := q.Check(ctx, errs.Precondition, "ls -1 "+remote.Quote(dir))
	if err != nil {
		return nil, err
	}

	var arts []models.PatchArtifact
	for _, name := range strings.Split(strings.TrimSpace(out), "\n") {
		name = strings.TrimSpace(name)
		p := path.Join(dir, name)
		switch {
		case diff && strings.HasSuffix(name, ".diff"):
			arts = append(arts, models.PatchArtifact{Kind: models.KindDiff, Name: name, RemotePath: p})
		case !diff && strings.HasSuffix(name, ".patch"):
			n, ok := models.ParsePatchNumber(name)
			if !ok {
				continue
			}
			head, err := q.Check(ctx, errs.Precondition, "head -n1 "+remote.Quote(p))
			if err != nil {
				return nil, err
			}
			arts = append(arts, models.PatchArtifact{
				Kind:       models.KindPatch,
				Number:     n,
				Name:       name,
				RemotePath: p,
				Commit:     Marker(head),
			})
		}
	}
	if len(arts) == 0 {
		return nil, errs.WithPath(errs.Precondition, "no artifacts uploaded", dir, nil)
	}
	sortArtifacts(arts)
	return arts, nil
}

func sortArtifacts(arts []models.PatchArtifact) {
	sort.SliceStable(arts, func(i, j int) bool {
		if arts[i].Number != arts[j].Number {
			return arts[i].Number < arts[j].Number
		}
		return arts[i].Name < arts[j].Name
	})
}

func firstLine(content []byte) string {
	sc := bufio.NewScanner(strings.NewReader(string(content)))
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

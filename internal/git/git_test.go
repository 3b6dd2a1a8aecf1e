package git

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
	when time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &fixture{t: t, dir: dir, repo: repo, wt: wt, when: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (f *fixture) commit(file, content, msg string) plumbing.Hash {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(filepath.Join(f.dir, file)), 0o755))
	require.NoError(f.t, os.WriteFile(filepath.Join(f.dir, file), []byte(content), 0o644))
	_, err := f.wt.Add(file)
	require.NoError(f.t, err)
	f.when = f.when.Add(time.Minute)
	sig := &object.Signature{Name: "Dev", Email: "dev@example.com", When: f.when}
	h, err := f.wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(f.t, err)
	return h
}

func TestOpenWalksUpToRoot(t *testing.T) {
	f := newFixture(t)
	f.commit("src/a.py", "a\n", "Initial")

	r, err := Open(filepath.Join(f.dir, "src"))
	require.NoError(t, err)
	want, _ := filepath.Abs(f.dir)
	assert.Equal(t, want, r.Path())
	assert.True(t, IsGitRepo(f.dir))
	assert.False(t, IsGitRepo(t.TempDir()))
}

func TestCommitsBetweenOldestFirst(t *testing.T) {
	f := newFixture(t)
	base := f.commit("a.py", "a\n", "Initial")
	c1 := f.commit("b.py", "b\n", "Add b")
	c2 := f.commit("c.py", "c\n", "Add c\n\nWith a body")

	r, err := Open(f.dir)
	require.NoError(t, err)

	commits, err := r.CommitsBetween(base.String(), c2.String())
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, c1.String(), commits[0].SHA)
	assert.Equal(t, c2.String(), commits[1].SHA)
	assert.Equal(t, 1, commits[0].Parents)
	assert.Equal(t, "Add c", commits[1].Subject())
	assert.True(t, r.HasCommit(c1.String()))
}

func TestCommitsBetweenUnknownRevision(t *testing.T) {
	f := newFixture(t)
	head := f.commit("a.py", "a\n", "Initial")
	r, err := Open(f.dir)
	require.NoError(t, err)

	missing := strings.Repeat("f", 40)
	_, err = r.CommitsBetween(missing, head.String())
	var notFound *CommitNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{missing}, notFound.Revisions)
	assert.False(t, r.HasCommit(missing))
}

func TestFormatPatch(t *testing.T) {
	f := newFixture(t)
	f.commit("a.py", "one\n", "Initial")
	h := f.commit("a.py", "two\n", "Change a\n\nExplain the change")

	r, err := Open(f.dir)
	require.NoError(t, err)
	patch, err := r.FormatPatch(h.String())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(patch, "From "+h.String()+" Mon Sep 17 00:00:00 2001\n"))
	assert.Contains(t, patch, "From: Dev <dev@example.com>\n")
	assert.Contains(t, patch, "Subject: [PATCH] Change a\n\nExplain the change\n---\n")
	assert.Contains(t, patch, "diff --git a/a.py b/a.py")
	assert.Contains(t, patch, "-one\n+two\n")
	assert.True(t, strings.HasSuffix(patch, "-- \napplypr\n\n"))
}

func TestFormatPatchRootCommit(t *testing.T) {
	f := newFixture(t)
	h := f.commit("a.py", "one\n", "Initial")

	r, err := Open(f.dir)
	require.NoError(t, err)
	patch, err := r.FormatPatch(h.String())
	require.NoError(t, err)
	assert.Contains(t, patch, "+one\n")
}

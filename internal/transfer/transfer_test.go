package transfer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePatch(t *testing.T, dir, name, sha string) models.PatchArtifact {
	t.Helper()
	p := filepath.Join(dir, name)
	body := "From " + sha + " Mon Sep 17 00:00:00 2001\nSubject: [PATCH] x\n\n" +
		"diff --git a/" + sha + ".py b/" + sha + ".py\n--- a/" + sha + ".py\n+++ b/" + sha + ".py\n@@ -1 +1 @@\n-a\n+b\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	n, _ := models.ParsePatchNumber(name)
	return models.PatchArtifact{Kind: models.KindPatch, Number: n, Name: name, LocalPath: p, Commit: sha}
}

func threePatches(t *testing.T) []models.PatchArtifact {
	dir := t.TempDir()
	return []models.PatchArtifact{
		writePatch(t, dir, "0001-add-tariff.patch", "aaaaaaaa11"),
		writePatch(t, dir, "0002-fix-rounding.patch", "bbbbbbbb22"),
		writePatch(t, dir, "0003-add-tests.patch", "cccccccc33"),
	}
}

func newUploader(m *remote.Mock) *Uploader {
	u := New(remote.NewExec(m, nil), nil)
	u.newID = func() string { return "abcd1234" }
	return u
}

func TestUploadMovesArtifactsIntoTarget(t *testing.T) {
	m := remote.NewMock("erp01")
	target := Target{Dir: "/home/erp/src/erp/patches/42", Owner: "erp"}

	out, err := newUploader(m).Upload(context.Background(), 42, target, threePatches(t), "")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "/home/erp/src/erp/patches/42/0003-add-tests.patch", out[2].RemotePath)

	calls := m.Calls()
	var uploads []remote.MockCall
	for _, c := range calls {
		if strings.HasPrefix(c.Line, "cat > ") {
			uploads = append(uploads, c)
		}
	}
	require.Len(t, uploads, 3)
	assert.Equal(t, "cat > /tmp/applypr-42-abcd1234/0001-add-tariff.patch", uploads[0].Line)
	assert.True(t, strings.HasPrefix(uploads[0].Stdin, "From aaaaaaaa11 "))

	assert.Equal(t, 3, m.Count("mv -f /tmp/applypr-42-abcd1234/"))
	assert.True(t, m.Ran("sudo bash -c"))
	assert.Less(t, m.Index("mkdir -p /home/erp/src/erp/patches/42"), m.Index("cat > "))
	assert.Greater(t, m.Index("chown -R erp: /home/erp/src/erp/patches/42"), m.Index("mv -f"))

	lines := m.Lines()
	assert.Equal(t, "rm -rf /tmp/applypr-42-abcd1234", lines[len(lines)-1])
}

func TestUploadResumesAfterMarker(t *testing.T) {
	m := remote.NewMock("erp01")
	out, err := newUploader(m).Upload(context.Background(), 42, Target{Dir: "/p/42"}, threePatches(t), "bbbbbbbb22")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Number)
	assert.Equal(t, 1, m.Count("cat > "))
	assert.False(t, m.Ran("chown"))
}

func TestUploadUnknownResumeCommitSendsNothing(t *testing.T) {
	m := remote.NewMock("erp01")
	_, err := newUploader(m).Upload(context.Background(), 42, Target{Dir: "/p/42"}, threePatches(t), "ffffffff")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ResumePointNotFound))
	assert.Empty(t, m.Calls())
}

func TestUploadFailureCarriesPath(t *testing.T) {
	m := remote.NewMock("erp01").On("cat > ", remote.Fail("No space left on device"))
	_, err := newUploader(m).Upload(context.Background(), 42, Target{Dir: "/p/42"}, threePatches(t), "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Upload))

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "/tmp/applypr-42-abcd1234/0001-add-tariff.patch", e.Path)
	assert.False(t, m.Ran("mv -f"))
	assert.True(t, m.Ran("rm -rf /tmp/applypr-42-abcd1234"))
}

func TestAfterCommitAcceptsAbbreviatedSHA(t *testing.T) {
	arts := threePatches(t)
	out, err := AfterCommit(arts, "aaaaaaa")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	_, err = AfterCommit(arts, "aaa")
	assert.True(t, errs.Is(err, errs.ResumePointNotFound))
}

func TestFromNumber(t *testing.T) {
	out := FromNumber(threePatches(t), 2)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Number)

	diff := []models.PatchArtifact{{Kind: models.KindDiff, Name: "42.diff"}}
	assert.Equal(t, diff, FromNumber(diff, 5))
}

func TestLocalArtifactsReadsMarkers(t *testing.T) {
	dir := t.TempDir()
	writePatch(t, dir, "0002-b.patch", "bbbbbbbb22")
	writePatch(t, dir, "0001-a.patch", "aaaaaaaa11")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	arts, err := LocalArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "0001-a.patch", arts[0].Name)
	assert.Equal(t, "aaaaaaaa11", arts[0].Commit)
	assert.Equal(t, []string{"aaaaaaaa11.py"}, arts[0].Files)

	_, err = LocalArtifacts(filepath.Join(dir, "missing"))
	assert.True(t, errs.Is(err, errs.Upload))
}

func TestRemoteListing(t *testing.T) {
	m := remote.NewMock("erp01").
		On("ls -1 /p/42", remote.OK("0002-b.patch\n0001-a.patch\n42.diff\n")).
		On("head -n1 /p/42/0001-a.patch", remote.OK("From aaaaaaaa11 Mon Sep 17 00:00:00 2001\n")).
		On("head -n1 /p/42/0002-b.patch", remote.OK("From bbbbbbbb22 Mon Sep 17 00:00:00 2001\n"))
	ex := remote.NewExec(m, nil)

	arts, err := Remote(context.Background(), ex, "/p/42", false)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, 1, arts[0].Number)
	assert.Equal(t, "aaaaaaaa11", arts[0].Commit)
	assert.Equal(t, "/p/42/0002-b.patch", arts[1].RemotePath)

	diffs, err := Remote(context.Background(), ex, "/p/42", true)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, models.KindDiff, diffs[0].Kind)
}

func TestRemoteListingEmptyDir(t *testing.T) {
	m := remote.NewMock("erp01").On("ls -1", remote.OK(""))
	_, err := Remote(context.Background(), remote.NewExec(m, nil), "/p/42", false)
	assert.True(t, errs.Is(err, errs.Precondition))
}

func TestMarker(t *testing.T) {
	assert.Equal(t, "abc123", Marker("From abc123 Mon Sep 17 00:00:00 2001"))
	assert.Equal(t, "", Marker("Subject: nope"))
	assert.Equal(t, "", Marker(""))
}

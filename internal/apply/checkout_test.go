package apply

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wahlandcase/applypr/internal/errs"
	"github.com/wahlandcase/applypr/internal/models"
	"github.com/wahlandcase/applypr/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkout builds a repository with lib.py committed and the diff changing
// it exported to patches/42/42.diff. With applied the change is committed too.
func checkout(t *testing.T, applied bool) (*remote.Exec, models.PatchArtifact) {
	t.Helper()
	for _, bin := range []string{"git", "bash"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
	dir := t.TempDir()
	ex := remote.NewExec(remote.NewLocal(), nil).In(dir)

	script := []string{
		"git init -q .",
		"git config user.email dev@example.com",
		"git config user.name Dev",
		"printf 'a\\nb\\nc\\n' > lib.py",
		"git add lib.py",
		"git commit -qm init",
		"printf 'a\\nB\\nc\\n' > lib.py",
		"mkdir -p patches/42",
		"git diff > patches/42/42.diff",
	}
	if applied {
		script = append(script, "git commit -qam 'Fix rounding'")
	} else {
		script = append(script, "git checkout -q -- lib.py")
	}
	_, err := ex.Check(context.Background(), errs.Unknown, strings.Join(script, " && "))
	require.NoError(t, err)

	p := filepath.Join(dir, "patches", "42", "42.diff")
	return ex, models.PatchArtifact{Kind: models.KindDiff, Name: "42.diff", RemotePath: p}
}

func gitOut(t *testing.T, ex *remote.Exec, line string) string {
	t.Helper()
	out, err := ex.Check(context.Background(), errs.Unknown, line)
	require.NoError(t, err)
	return strings.TrimSpace(out)
}

func TestCheckoutRejectedDiffAlreadyApplied(t *testing.T) {
	ex, art := checkout(t, true)
	s, err := NewSession(ex, []models.PatchArtifact{art}, Options{Reject: true}, nil)
	require.NoError(t, err)

	step, err := s.Start(context.Background())
	require.NoError(t, err)
	require.False(t, step.Done)
	assert.Equal(t, []string{"lib.py.rej"}, step.Conflict.Rejects)

	step, err = s.Resolve(context.Background(), Continue)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, OutcomeResolved, step.Outcome)
	assert.Equal(t, "2", gitOut(t, ex, "git rev-list --count HEAD"))
	assert.Empty(t, gitOut(t, ex, "git ls-files patches"))
}

func TestCheckoutDiffCommitKeepsPatchesUntracked(t *testing.T) {
	ex, art := checkout(t, false)
	s, err := NewSession(ex, []models.PatchArtifact{art}, Options{CommitMessage: "Apply PR #42: Fix rounding"}, nil)
	require.NoError(t, err)

	step, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeClean, step.Outcome)
	assert.Equal(t, "Apply PR #42: Fix rounding", gitOut(t, ex, "git log -1 --format=%s"))
	assert.Equal(t, "lib.py", gitOut(t, ex, "git show --name-only --format= HEAD"))
	assert.Empty(t, gitOut(t, ex, "git ls-files patches"))
}

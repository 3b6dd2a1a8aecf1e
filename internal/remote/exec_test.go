package remote

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wahlandcase/applypr/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, "/home/erp/src", Quote("/home/erp/src"))
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "'Apply PR #12: fix'", Quote("Apply PR #12: fix"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
	assert.Equal(t, "git am a.patch 'b c.patch'", QuoteAll("git", "am", "a.patch", "b c.patch"))
}

func TestExecWrap(t *testing.T) {
	e := NewExec(NewMock("erp01"), nil)

	assert.Equal(t, "uname -n", e.Wrap("uname -n"))
	assert.Equal(t, "cd /srv/erp && git status", e.In("/srv/erp").Wrap("git status"))
	assert.Equal(t, "sudo bash -c 'mkdir -p /tmp/x'", e.As("").Wrap("mkdir -p /tmp/x"))
	assert.Equal(t,
		`sudo -H -u erp bash -c 'cd /srv/erp && git commit -m '\''Apply PR #1: x'\'''`,
		e.In("/srv/erp").As("erp").Wrap("git commit -m "+Quote("Apply PR #1: x")),
	)
	assert.Equal(t, "cd /srv && ls", e.WithoutSudo().As("erp").In("/srv").Wrap("ls"))
	assert.Equal(t, "ls", e.As("erp").Unprivileged().Wrap("ls"))
}

func TestExecDerivedContextsAreIndependent(t *testing.T) {
	base := NewExec(NewMock("h"), nil)
	repo := base.In("/srv/erp").As("erp")

	assert.Equal(t, "", base.Dir())
	assert.Equal(t, "/srv/erp", repo.Dir())
	assert.Equal(t, "ls", base.Wrap("ls"))
}

func TestExecCheck(t *testing.T) {
	m := NewMock("h").On("git am", Fail("Applying: one\nPatch failed at 0001 one"))
	e := NewExec(m, nil)

	out, err := e.Check(context.Background(), errs.Conflict, "git am 0001-one.patch")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Conflict))
	assert.Contains(t, out, "Patch failed")
	assert.Contains(t, err.Error(), "Patch failed at 0001 one")

	out, err = e.Check(context.Background(), errs.Conflict, "git status")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecTransportError(t *testing.T) {
	m := NewMock("erp01")
	m.Err = errors.New("connection reset")
	e := NewExec(m, nil)

	_, err := e.Run(context.Background(), "ls")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Connection))
	assert.Contains(t, err.Error(), "erp01")
}

func TestExecUpload(t *testing.T) {
	m := NewMock("h").On("cat > /tmp/stage/bad.patch", Fail("Permission denied"))
	e := NewExec(m, nil).As("")

	require.NoError(t, e.Upload(context.Background(), strings.NewReader("From abc\n"), "/tmp/stage/0001.patch"))
	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sudo bash -c 'cat > /tmp/stage/0001.patch'", calls[0].Line)
	assert.Equal(t, "From abc\n", calls[0].Stdin)

	err := e.Upload(context.Background(), strings.NewReader("x"), "/tmp/stage/bad.patch")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Upload))
	assert.Contains(t, err.Error(), "/tmp/stage/bad.patch")
}

func TestExecExists(t *testing.T) {
	m := NewMock("h").On("test -e /missing", Fail(""))
	e := NewExec(m, nil)

	ok, err := e.Exists(context.Background(), "/srv/erp")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Exists(context.Background(), "/missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMockScripting(t *testing.T) {
	m := NewMock("h").
		On("git am", Fail("conflict"), OK("Applying: two")).
		On("git am --abort", OK(""))
	ctx := context.Background()

	r, _ := m.Run(ctx, "git am a b", nil)
	assert.True(t, r.Failed())
	r, _ = m.Run(ctx, "git am --abort", nil)
	assert.False(t, r.Failed())
	r, _ = m.Run(ctx, "git am --resolved", nil)
	assert.Equal(t, "Applying: two", r.Output)
	r, _ = m.Run(ctx, "git am --skip", nil)
	assert.Equal(t, "Applying: two", r.Output)

	assert.Equal(t, 4, m.Count("git am"))
	assert.Equal(t, 1, m.Index("--abort"))
	assert.Equal(t, -1, m.Index("wiggle"))
}

func TestResultLines(t *testing.T) {
	r := Result{Output: "a\r\n\n  \nb\n"}
	assert.Equal(t, []string{"a", "b"}, r.Lines())
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal("localhost"))
	assert.True(t, IsLocal(""))
	assert.False(t, IsLocal("erp01"))
}

package gitvault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

func TestInit(t *testing.T) {
	tv := setupTestVault(t)

	assert.True(t, IsRepository(tv.fs))

	// A second init on the same filesystem must fail cleanly.
	_, err := Init(tv.ctx, &Options{FS: tv.fs})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAlreadyInitialized))
}

func TestIsRepositoryPlainDirectory(t *testing.T) {
	fsys := vfs.NewMemory()
	require.NoError(t, fsys.WriteFile("note.md", []byte("x"), 0o644))

	assert.False(t, IsRepository(fsys))
}

func TestOpen(t *testing.T) {
	tv := setupTestVaultWithCommit(t)

	reopened, err := Open(tv.ctx, &Options{FS: tv.fs})
	require.NoError(t, err)

	snap, err := reopened.Snapshot(tv.ctx)
	require.NoError(t, err)
	assert.Contains(t, snap, "inbox.md")
}

func TestOpenMissingRepository(t *testing.T) {
	_, err := Open(context.Background(), &Options{FS: vfs.NewMemory()})
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	opts := &Options{}
	assert.Error(t, opts.Validate(), "missing filesystem must be rejected")

	opts = &Options{FS: vfs.NewMemory()}
	assert.NoError(t, opts.Validate())
}

func TestEnsureRemote(t *testing.T) {
	tv := setupTestVault(t)

	require.NoError(t, tv.vault.EnsureRemote(tv.ctx, "https://example.com/owner/vault.git"))

	// Same URL again is a no-op.
	require.NoError(t, tv.vault.EnsureRemote(tv.ctx, "https://example.com/owner/vault.git"))

	// A different URL replaces the remote.
	require.NoError(t, tv.vault.EnsureRemote(tv.ctx, "https://example.com/owner/other.git"))

	remote, err := tv.vault.repo.Remote(DefaultRemoteName)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/owner/other.git"}, remote.Config().URLs)
}

func TestCommit(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T, tv *testVault)
		msg         string
		who         Signature
		wantErr     error
		expectError bool
	}{
		{
			name: "commit staged file",
			setup: func(t *testing.T, tv *testVault) {
				tv.writeFile(t, "note.md", "hello\n")
				require.NoError(t, tv.vault.AddAll(tv.ctx))
			},
			msg: "chore(sync): local changes",
			who: testSignature(),
		},
		{
			name:    "nothing staged",
			setup:   func(t *testing.T, tv *testVault) {},
			msg:     "chore(sync): local changes",
			who:     testSignature(),
			wantErr: errs.ErrNothingToCommit,
		},
		{
			name: "empty message rejected",
			setup: func(t *testing.T, tv *testVault) {
				tv.writeFile(t, "note.md", "hello\n")
				require.NoError(t, tv.vault.AddAll(tv.ctx))
			},
			msg:         "",
			who:         testSignature(),
			expectError: true,
		},
		{
			name: "missing committer identity rejected",
			setup: func(t *testing.T, tv *testVault) {
				tv.writeFile(t, "note.md", "hello\n")
				require.NoError(t, tv.vault.AddAll(tv.ctx))
			},
			msg:         "chore(sync): local changes",
			who:         Signature{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := setupTestVault(t)
			tt.setup(t, tv)

			hash, err := tv.vault.Commit(tv.ctx, tt.msg, tt.who)

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
			case tt.expectError:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, hash)
			}
		})
	}
}

func TestCommitUnchangedContent(t *testing.T) {
	tv := setupTestVaultWithCommit(t)

	// Re-staging identical content yields an empty commit attempt.
	require.NoError(t, tv.vault.AddAll(tv.ctx))
	_, err := tv.vault.Commit(tv.ctx, "chore(sync): local changes", testSignature())
	assert.True(t, errors.Is(err, errs.ErrNothingToCommit))
}

func TestAddSkipsExcludedPaths(t *testing.T) {
	tv := setupTestVault(t)
	tv.writeFile(t, "note.md", "hello\n")

	require.NoError(t, tv.vault.Add(tv.ctx, "note.md", ".git/config", "", ".DS_Store"))

	status, err := tv.vault.Status(tv.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"note.md"}, status.Added)
}

func TestStatus(t *testing.T) {
	tv := setupTestVaultWithCommit(t)

	status, err := tv.vault.Status(tv.ctx)
	require.NoError(t, err)
	assert.True(t, status.Clean())

	tv.writeFile(t, "inbox.md", "# Inbox\n- new item\n")
	tv.writeFile(t, "fresh.md", "new\n")
	require.NoError(t, tv.fs.Remove("inbox.md"))

	status, err = tv.vault.Status(tv.ctx)
	require.NoError(t, err)
	assert.False(t, status.Clean())
	assert.Contains(t, status.Deleted, "inbox.md")
	assert.Contains(t, status.Untracked, "fresh.md")
}

func TestSnapshotMatchesWorktree(t *testing.T) {
	tv := setupTestVaultWithCommit(t)
	tv.writeFile(t, "notes/deep/idea.md", "spark\n")

	snap, err := tv.vault.Snapshot(tv.ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"inbox.md", "notes/deep/idea.md"}, snap.Paths())
	assert.NotContains(t, snap, ".git/HEAD")
}

func TestCurrentBranch(t *testing.T) {
	tv := setupTestVault(t)

	// Before the first commit the symbolic HEAD still names the branch.
	branch, err := tv.vault.CurrentBranch(tv.ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCheckoutBranch(t *testing.T) {
	tv := setupTestVaultWithCommit(t)

	require.NoError(t, tv.vault.CheckoutBranch(tv.ctx, "main", true))

	branch, err := tv.vault.CurrentBranch(tv.ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	err = tv.vault.CheckoutBranch(tv.ctx, "missing", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestCheckoutBranchBeforeFirstCommit(t *testing.T) {
	tv := setupTestVault(t)

	require.NoError(t, tv.vault.CheckoutBranch(tv.ctx, "main", true))

	branch, err := tv.vault.CurrentBranch(tv.ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	// The first commit lands on the requested branch.
	tv.writeFile(t, "inbox.md", "# Inbox\n")
	tv.commitAll(t, "chore(sync): local changes")

	head, err := tv.vault.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", head.Name().String())
}

func TestHistory(t *testing.T) {
	tv := setupTestVaultWithCommit(t)

	who := testSignature()
	who.When = who.When.Add(time.Minute)
	tv.writeFile(t, "second.md", "two\n")
	require.NoError(t, tv.vault.AddAll(tv.ctx))
	_, err := tv.vault.Commit(tv.ctx, "chore(sync): merge remote changes", who)
	require.NoError(t, err)

	who.When = who.When.Add(time.Minute)
	tv.writeFile(t, "third.md", "three\n")
	require.NoError(t, tv.vault.AddAll(tv.ctx))
	_, err = tv.vault.Commit(tv.ctx, "not a conventional header", who)
	require.NoError(t, err)

	entries, err := tv.vault.History(tv.ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Most recent first.
	assert.Equal(t, "not a conventional header", entries[0].Message)
	assert.Empty(t, entries[0].Kind)

	assert.Equal(t, "chore", entries[1].Kind)
	assert.Equal(t, "sync", entries[1].Scope)
	assert.Equal(t, "Test Device", entries[1].Author)

	limited, err := tv.vault.History(tv.ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

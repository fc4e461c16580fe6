package gitvault

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

// testVault bundles a vault with its in-memory filesystem for tests.
type testVault struct {
	vault *Vault
	fs    vfs.Filesystem
	ctx   context.Context
}

func testSignature() Signature {
	return Signature{
		Name:  "Test Device",
		Email: "device@example.com",
		When:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

// setupTestVault initializes an empty vault repository on an in-memory
// filesystem.
func setupTestVault(t *testing.T) *testVault {
	t.Helper()

	ctx := context.Background()
	fsys := vfs.NewMemory()

	vault, err := Init(ctx, &Options{FS: fsys})
	require.NoError(t, err, "failed to initialize test vault")
	require.NotNil(t, vault)

	return &testVault{vault: vault, fs: fsys, ctx: ctx}
}

// setupTestVaultWithCommit initializes a vault holding one committed note.
func setupTestVaultWithCommit(t *testing.T) *testVault {
	t.Helper()

	tv := setupTestVault(t)
	tv.writeFile(t, "inbox.md", "# Inbox\n")
	tv.commitAll(t, "chore(sync): local changes")
	return tv
}

func (tv *testVault) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, tv.fs.WriteFile(rel, []byte(content), 0o644))
}

func (tv *testVault) commitAll(t *testing.T, msg string) string {
	t.Helper()

	require.NoError(t, tv.vault.AddAll(tv.ctx))
	hash, err := tv.vault.Commit(tv.ctx, msg, testSignature())
	require.NoError(t, err, "failed to commit")
	return hash
}

// headHash returns the current HEAD commit hash.
func (tv *testVault) headHash(t *testing.T) plumbing.Hash {
	t.Helper()

	head, err := tv.vault.repo.Head()
	require.NoError(t, err)
	return head.Hash()
}

// setRemoteBranch plants a remote-tracking reference, standing in for what
// a fetch would have written.
func (tv *testVault) setRemoteBranch(t *testing.T, branch string, hash plumbing.Hash) {
	t.Helper()

	refName := plumbing.NewRemoteReferenceName(DefaultRemoteName, branch)
	require.NoError(t, tv.vault.repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)))
}

func (tv *testVault) readFile(t *testing.T, rel string) string {
	t.Helper()

	data, err := tv.fs.ReadFile(rel)
	require.NoError(t, err)
	return string(data)
}

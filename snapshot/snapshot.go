// Package snapshot represents the state of a file tree at one instant as a
// mapping from repository-relative path to content digest. Snapshots of the
// local vault and of the remote tree feed the reconciler, which never needs
// to know which backend produced them.
package snapshot

import (
	"path"
	"sort"
	"strings"

	"github.com/OpenParachutePBC/parachute-sub000/blob"
	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

// Snapshot maps a repository-relative path (forward slashes) to the blob
// digest of its content.
type Snapshot map[string]string

// excludedDirs are version-control metadata directories that must never
// appear in a snapshot.
var excludedDirs = map[string]bool{
	".git": true,
}

// reservedNames are entries that are never hashed as content files.
var reservedNames = map[string]bool{
	".DS_Store": true,
}

// Excluded reports whether the given repository-relative path is internal
// metadata or a reserved name and must be left out of snapshots.
func Excluded(rel string) bool {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if rel == "." || rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if excludedDirs[p] {
			return true
		}
	}

	last := parts[len(parts)-1]
	return excludedDirs[last] || reservedNames[last]
}

// Walk produces a Snapshot of the tree rooted at root within fsys. Files
// are hashed one at a time via a streaming digest; metadata directories
// and reserved names are skipped entirely.
func Walk(fsys vfs.Filesystem, root string) (Snapshot, error) {
	snap := make(Snapshot)

	err := walkDir(fsys, root, "", snap)
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func walkDir(fsys vfs.Filesystem, root, rel string, snap Snapshot) error {
	dir := root
	if rel != "" {
		dir = path.Join(root, rel)
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return errs.Wrapf(err, "listing %q", dir)
	}

	for _, entry := range entries {
		entryRel := entry.Name()
		if rel != "" {
			entryRel = path.Join(rel, entry.Name())
		}

		if Excluded(entryRel) {
			continue
		}

		if entry.IsDir() {
			if err := walkDir(fsys, root, entryRel, snap); err != nil {
				return err
			}
			continue
		}

		digest, err := hashFile(fsys, path.Join(root, entryRel), entry.Size())
		if err != nil {
			return err
		}
		snap[entryRel] = digest
	}

	return nil
}

func hashFile(fsys vfs.Filesystem, fullPath string, size int64) (string, error) {
	f, err := fsys.Open(fullPath)
	if err != nil {
		return "", errs.Wrapf(err, "opening %q", fullPath)
	}
	defer f.Close()

	digest, err := blob.HashReader(f, size)
	if err != nil {
		return "", errs.Wrapf(err, "hashing %q", fullPath)
	}

	return digest, nil
}

// Paths returns the snapshot's paths in sorted order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equal reports whether two snapshots describe identical trees.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for p, h := range s {
		if other[p] != h {
			return false
		}
	}
	return true
}

// Clone returns a copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for p, h := range s {
		out[p] = h
	}
	return out
}

// Package blob computes content digests for vault files. The digest is the
// git blob object hash ("blob <size>\x00" + bytes), which makes a locally
// computed digest directly comparable both to the native backend's object
// IDs and to the blob SHAs reported by the hosting provider's API, so "has
// this file changed?" never needs a byte transfer to answer.
package blob

import (
	"io"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

// Hash returns the digest of the given bytes. Deterministic, pure, and
// valid for zero-length input.
func Hash(data []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, data).String()
}

// HashReader streams size bytes from r through the digest. Tree walks use
// this so only one file's bytes are in flight at a time, regardless of
// file size (audio captures can be large).
func HashReader(r io.Reader, size int64) (string, error) {
	h := plumbing.NewHasher(plumbing.BlobObject, size)
	if _, err := io.Copy(h, r); err != nil {
		return "", errs.Wrap(err, "hashing content")
	}
	return h.Sum().String(), nil
}

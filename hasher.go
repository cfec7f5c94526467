// Package deduper implements the content-addressed deduplication engine:
// chunking, the catalog data model, its on-disk codec, tree scanning, the
// chunk store and the hydrator. Subpackages split each component; this
// file holds the one piece shared by all of them, the hashing algorithm
// selector.
package deduper

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// HashingAlgorithm identifies one of the four cryptographic hashes a
// catalog may be keyed on. It is a whole-catalog property: every record
// in a given Catalog is hashed under the same algorithm.
type HashingAlgorithm string

const (
	MD5    HashingAlgorithm = "md5"
	SHA1   HashingAlgorithm = "sha1"
	SHA256 HashingAlgorithm = "sha256"
	SHA512 HashingAlgorithm = "sha512"
)

// ParseHashingAlgorithm validates a user- or catalog-supplied algorithm
// name, case-insensitively.
func ParseHashingAlgorithm(name string) (HashingAlgorithm, error) {
	algorithm := HashingAlgorithm(strings.ToLower(name))
	switch algorithm {
	case MD5, SHA1, SHA256, SHA512:
		return algorithm, nil
	default:
		return "", fmt.Errorf("unsupported hashing algorithm: %q", name)
	}
}

// Hasher is a factory for hash.Hash based on a named algorithm.
type Hasher struct {
	Algorithm HashingAlgorithm
}

// New creates a fresh hash.Hash instance for the chosen algorithm.
func (h Hasher) New() (hash.Hash, error) {
	switch h.Algorithm {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hashing algorithm: %q", h.Algorithm)
	}
}

// EmptyDigest returns the hex-lowercase digest of the empty byte string
// under the chosen algorithm, used for the single ChunkRef of a
// zero-length file.
func (h Hasher) EmptyDigest() (string, error) {
	hasher, err := h.New()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

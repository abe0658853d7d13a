// Package cryptoutil collects the cryptographic primitives shared by the
// Merkle tree, block, and consensus-message code: SHA-256 hashing, BLS12-381
// node signing, and Ed25519 transaction-signature verification.
package cryptoutil

import (
	"hash"

	"github.com/minio/sha256-simd"
)

// Sum256 returns the SHA-256 digest of data. It exists so call sites never
// import crypto/sha256 directly — every hash in this codebase (Merkle
// leaves/nodes, block self-hash, transaction content hash) goes through the
// AVX2-accelerated implementation when the host CPU supports it.
func Sum256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// NewHasher returns a fresh streaming SHA-256 hasher, for call sites that
// need to write several fields before finalizing (e.g. the block self-hash).
func NewHasher() hash.Hash {
	return sha256.New()
}

// HashPair hashes left concatenated with right, the operation the Merkle
// tree performs at every internal node.
func HashPair(left, right []byte) []byte {
	h := NewHasher()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

package crypto

import (
	"hash"

	"golang.org/x/crypto/sha3"
)

const HashLenSHA3_256 = 32

// SHA3Hasher computes SHA3-256 digests.
type SHA3Hasher struct {
	hash.Hash
}

var _ Hasher = (*SHA3Hasher)(nil)

func NewSHA3Hasher() *SHA3Hasher {
	return &SHA3Hasher{Hash: sha3.New256()}
}

// ComputeHash calculates and returns the SHA3-256 output of data. The
// running state is reset.
func (s *SHA3Hasher) ComputeHash(data []byte) Hash {
	s.Reset()
	_, _ = s.Write(data)
	digest := make(Hash, 0, HashLenSHA3_256)
	return s.Sum(digest)
}

// SumHash returns the SHA3-256 output and resets the hash state
func (s *SHA3Hasher) SumHash() Hash {
	digest := make(Hash, 0, HashLenSHA3_256)
	digest = s.Sum(digest)
	s.Reset()
	return digest
}

// Package crypto defines the cryptographic operations the consensus core
// consumes. Signature schemes are provided by the surrounding node; only
// hashing is implemented here.
package crypto

import (
	"encoding/hex"

	"github.com/garpnet/consensus-core/model/chain"
)

// Hash is a digest produced by a Hasher.
type Hash []byte

func (h Hash) Hex() string {
	return hex.EncodeToString(h)
}

// Equal checks if a hash is equal to a given hash
func (h Hash) Equal(input Hash) bool {
	if len(h) != len(input) {
		return false
	}
	for i := 0; i < len(h); i++ {
		if h[i] != input[i] {
			return false
		}
	}
	return true
}

// Hasher computes digests. Implementations are not required to be safe for
// concurrent use.
type Hasher interface {
	// Size returns the digest length in bytes.
	Size() int
	// ComputeHash returns the digest of data, independent of previously added data.
	ComputeHash(data []byte) Hash
	// Write adds data to the running state.
	Write(data []byte) (int, error)
	// SumHash returns the digest of the running state and resets it.
	SumHash() Hash
	Reset()
}

// Signer signs data on behalf of the local participant.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Verifier checks signatures of known participants.
type Verifier interface {
	// Verify returns false for a signature that does not match.
	// Expected errors:
	//   - InvalidSignerError if the signer's key is unknown
	Verify(signer chain.ParticipantID, data []byte, signature []byte) (bool, error)
}

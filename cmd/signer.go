package cmd

import (
	"bytes"

	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/crypto"
	"github.com/garpnet/consensus-core/model/chain"
)

// digestSigner signs with the SHA3 digest of the signer identity followed by
// the data. It does not authenticate anything and is only meant for local
// networks whose participants share a process.
type digestSigner struct {
	id chain.ParticipantID
}

var _ crypto.Signer = digestSigner{}

func digest(id chain.ParticipantID, data []byte) []byte {
	hasher := crypto.NewSHA3Hasher()
	_, _ = hasher.Write([]byte(id))
	_, _ = hasher.Write(data)
	return hasher.SumHash()
}

func (s digestSigner) Sign(data []byte) ([]byte, error) {
	return digest(s.id, data), nil
}

// digestVerifier accepts digest signatures of registered validators.
type digestVerifier struct {
	registry *validators.Registry
}

var _ crypto.Verifier = digestVerifier{}

func (v digestVerifier) Verify(signer chain.ParticipantID, data []byte, signature []byte) (bool, error) {
	if _, err := v.registry.ByID(signer); err != nil {
		return false, crypto.InvalidSignerError{Signer: signer}
	}
	return bytes.Equal(digest(signer, data), signature), nil
}

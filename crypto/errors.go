package crypto

import (
	"errors"
	"fmt"

	"github.com/garpnet/consensus-core/model/chain"
)

// InvalidSignerError indicates a signature by a participant whose key is not known.
type InvalidSignerError struct {
	Signer chain.ParticipantID
}

func (e InvalidSignerError) Error() string {
	return fmt.Sprintf("no verification key for signer %s", e.Signer)
}

func IsInvalidSignerError(err error) bool {
	var e InvalidSignerError
	return errors.As(err, &e)
}

package messages

import (
	"github.com/garpnet/consensus-core/model/chain"
)

// TransactionSubmission forwards a pending transaction together with the fee
// it was admitted with, so the receiving pool can rank it the same way.
type TransactionSubmission struct {
	Transaction *chain.Transaction
	Fee         uint64
}

package module

// CacheMetrics tracks the read cache in front of persistent storage.
type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheNotFound records the number of times the queried item was not found in either cache or database.
	CacheNotFound(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache, but found in the database.
	CacheMiss(resource string)
}

// MempoolMetrics tracks admission, extraction and forwarding of pending transactions.
type MempoolMetrics interface {
	// TransactionAdmitted is called when a transaction of the given serialized size entered the pool.
	TransactionAdmitted(sizeBytes uint64)
	// TransactionRejected is called for every refused submission, labelled with the rejection reason.
	TransactionRejected(reason string)
	// TransactionEvicted is called when replace-by-fee displaced a pending transaction.
	TransactionEvicted()
	// TransactionsExtracted is called when a proposer consumed a batch.
	TransactionsExtracted(count int)
	// MempoolSize reports the current number of entries and their total serialized size.
	MempoolSize(entries uint, bytes uint64)
	// TransactionsForwarded reports a forwarding round.
	TransactionsForwarded(count int, recipients int)
	// ForwardFailed is called once per failed per-recipient send.
	ForwardFailed()
}

// ConsensusMetrics tracks voting, finality and fork choice.
type ConsensusMetrics interface {
	VoteRecorded()
	// VoteRefused is called when a voter tried to vote while locked out.
	VoteRefused()
	SlotFinalized(slot uint64)
	BlockInserted()
	BestForkWeight(weight uint64)
	EngineSwitched(engine string)
	// ViewChanged is called when the participant abandons a view without progress.
	ViewChanged(view uint64)
}

// ValidatorMetrics tracks the validator set.
type ValidatorMetrics interface {
	TotalVotingPower(power uint64)
	ActiveValidators(count int)
	ValidatorSlashed(kind string)
}

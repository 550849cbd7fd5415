package chain

import (
	"sort"
)

// ParticipantID uniquely identifies a consensus participant (a validator or
// a delegator) across the network.
type ParticipantID string

func (p ParticipantID) String() string {
	return string(p)
}

// ParticipantIDList is a list of participant identities.
type ParticipantIDList []ParticipantID

// Contains returns true if the list contains the given participant.
func (l ParticipantIDList) Contains(id ParticipantID) bool {
	for _, other := range l {
		if other == id {
			return true
		}
	}
	return false
}

// Sorted returns a lexicographically ordered copy of the list.
func (l ParticipantIDList) Sorted() ParticipantIDList {
	dup := make(ParticipantIDList, len(l))
	copy(dup, l)
	sort.Slice(dup, func(i, j int) bool { return dup[i] < dup[j] })
	return dup
}

// Strings converts the list into plain strings, mostly for logging.
func (l ParticipantIDList) Strings() []string {
	out := make([]string, 0, len(l))
	for _, id := range l {
		out = append(out, string(id))
	}
	return out
}

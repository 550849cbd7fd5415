package logging

import (
	"github.com/garpnet/consensus-core/model/chain"
)

type entity interface {
	ID() chain.Identifier
}

// ID returns the raw identifier bytes of the given entity, for use with
// zerolog's Hex field.
func ID(e entity) []byte {
	id := e.ID()
	return id[:]
}

// IDs converts identifiers into their hex representation.
func IDs(ids []chain.Identifier) []string {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, id.String())
	}
	return ss
}

// Participants converts participant identities into plain strings.
func Participants(ids []chain.ParticipantID) []string {
	return chain.ParticipantIDList(ids).Strings()
}

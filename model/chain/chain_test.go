package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garpnet/consensus-core/model/chain"
)

func TestHeaderID(t *testing.T) {
	header := chain.Header{
		ParentID:   chain.Identifier{0x11},
		Slot:       7,
		Epoch:      1,
		ProposerID: "alice",
	}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, header.ID(), header.ID())
	})

	t.Run("sensitive to every field", func(t *testing.T) {
		other := header
		other.Slot = 8
		assert.NotEqual(t, header.ID(), other.ID())

		other = header
		other.ProposerID = "bob"
		assert.NotEqual(t, header.ID(), other.ID())
	})

	t.Run("block id is header id", func(t *testing.T) {
		block := chain.Block{Header: header}
		assert.Equal(t, header.ID(), block.ID())
	})
}

func TestIdentifierHexRoundTrip(t *testing.T) {
	id := chain.Header{Slot: 3}.ID()
	decoded, err := chain.HexStringToIdentifier(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	_, err = chain.HexStringToIdentifier("abcd")
	assert.Error(t, err)
}

func TestParticipantIDList(t *testing.T) {
	list := chain.ParticipantIDList{"carol", "alice", "bob"}
	assert.True(t, list.Contains("bob"))
	assert.False(t, list.Contains("dave"))
	assert.Equal(t, chain.ParticipantIDList{"alice", "bob", "carol"}, list.Sorted())
	// original untouched
	assert.Equal(t, chain.ParticipantID("carol"), list[0])
}

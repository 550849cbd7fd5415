package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/garpnet/consensus-core/model/chain"
)

const (

	// codes for special database markers
	codeLatestSlot = 1 // latest slot with an indexed block

	// codes for entities
	codeBlock = 10

	// codes for indexes
	codeSlotToBlock = 20 // index mapping slot to block ID
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case string:
		return []byte(i)
	case chain.Identifier:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}

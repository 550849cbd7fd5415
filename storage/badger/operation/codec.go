package operation

import (
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack"

	"github.com/garpnet/consensus-core/module/irrecoverable"
)

// Values are msgpack encoded and snappy compressed. Both directions fail only
// on corrupted data or unencodable types, so errors are exceptions.
func encodeEntity(entity interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, irrecoverable.NewExceptionf("could not encode %T: %w", entity, err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodeValue(val []byte, entity interface{}) error {
	raw, err := snappy.Decode(nil, val)
	if err != nil {
		return irrecoverable.NewExceptionf("could not decompress value: %w", err)
	}
	err = msgpack.Unmarshal(raw, entity)
	if err != nil {
		return irrecoverable.NewExceptionf("could not decode %T: %w", entity, err)
	}
	return nil
}

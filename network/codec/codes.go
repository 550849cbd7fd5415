// Package codec assigns each network message type a one byte code that
// prefixes its encoding.
package codec

import (
	"fmt"
	"reflect"

	"github.com/garpnet/consensus-core/model/messages"
)

const (
	CodeMin uint8 = iota + 1

	CodeBlockProposal
	CodeBlockVote
	CodeTransactionSubmission

	CodeMax
)

type registration struct {
	name  string
	empty func() interface{}
}

var registry = map[uint8]registration{
	CodeBlockProposal:         {"BlockProposal", func() interface{} { return new(messages.BlockProposal) }},
	CodeBlockVote:             {"BlockVote", func() interface{} { return new(messages.BlockVote) }},
	CodeTransactionSubmission: {"TransactionSubmission", func() interface{} { return new(messages.TransactionSubmission) }},
}

var codeByType = func() map[reflect.Type]uint8 {
	byType := make(map[reflect.Type]uint8, len(registry))
	for code, reg := range registry {
		byType[reflect.TypeOf(reg.empty())] = code
	}
	return byType
}()

// CodeOf returns the code and name of a message passed by pointer.
func CodeOf(msg interface{}) (uint8, string, error) {
	code, ok := codeByType[reflect.TypeOf(msg)]
	if !ok {
		return 0, "", fmt.Errorf("unregistered message type %T", msg)
	}
	return code, registry[code].name, nil
}

// Empty returns a pointer to a zero message of the type registered for code.
// Expected errors:
//   - UnknownCodeError if no type is registered for code
func Empty(code uint8) (interface{}, string, error) {
	reg, ok := registry[code]
	if !ok {
		return nil, "", UnknownCodeError{Code: code}
	}
	return reg.empty(), reg.name, nil
}

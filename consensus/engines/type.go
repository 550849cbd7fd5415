package engines

import (
	"fmt"
	"strings"
)

// Type enumerates the supported consensus algorithms.
type Type int

const (
	Tendermint Type = iota + 1
	HotStuff
	PBFT
	HoneyBadgerBFT
	Streamlet
	Raft
	ProofOfStakeholder
)

var typeNames = map[Type]string{
	Tendermint:         "tendermint",
	HotStuff:           "hotstuff",
	PBFT:               "pbft",
	HoneyBadgerBFT:     "honeybadger",
	Streamlet:          "streamlet",
	Raft:               "raft",
	ProofOfStakeholder: "proof-of-stakeholder",
}

// Types lists all consensus algorithms in declaration order.
func Types() []Type {
	return []Type{Tendermint, HotStuff, PBFT, HoneyBadgerBFT, Streamlet, Raft, ProofOfStakeholder}
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Valid returns true if t is one of the enumerated algorithms.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType resolves an algorithm name, case-insensitively.
// Expected errors:
//   - UnknownTypeError if the name does not denote an algorithm
func ParseType(name string) (Type, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == normalized {
			return t, nil
		}
	}
	return 0, UnknownTypeError{Name: name}
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, UnknownTypeError{Name: t.String()}
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

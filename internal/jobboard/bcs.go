package jobboard

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/R3E-Network/jobboard/internal/ledger"
)

// =============================================================================
// BCS encoding of pure arguments
// =============================================================================

// Move types of the pure arguments the contract takes.
const (
	TypeU64          = "u64"
	TypeAddress      = "address"
	TypeString       = "string"
	TypeVectorU64    = "vector<u64>"
	TypeVectorString = "vector<string>"
)

// appendULEB128 appends a BCS length prefix. Unsigned varints in
// encoding/binary are LEB128.
func appendULEB128(b []byte, n uint64) []byte {
	return binary.AppendUvarint(b, n)
}

func appendU64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

func appendString(b []byte, s string) []byte {
	b = appendULEB128(b, uint64(len(s)))
	return append(b, s...)
}

func appendAddress(b []byte, addr string) ([]byte, error) {
	norm, err := ledger.NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(norm, "0x"))
	if err != nil {
		return nil, err
	}
	return append(b, raw...), nil
}

// PureU64 encodes a u64 argument.
func PureU64(v uint64) Argument {
	return Argument{Kind: ArgPure, Type: TypeU64, Value: v, BCS: appendU64(nil, v)}
}

// PureString encodes a UTF-8 string argument.
func PureString(s string) Argument {
	return Argument{Kind: ArgPure, Type: TypeString, Value: s, BCS: appendString(nil, s)}
}

// PureStrings encodes a vector<string> argument.
func PureStrings(ss []string) Argument {
	if ss == nil {
		ss = []string{}
	}
	b := appendULEB128(nil, uint64(len(ss)))
	for _, s := range ss {
		b = appendString(b, s)
	}
	return Argument{Kind: ArgPure, Type: TypeVectorString, Value: ss, BCS: b}
}

// PureAddress encodes an address argument; the value is normalized first.
func PureAddress(addr string) (Argument, error) {
	b, err := appendAddress(nil, addr)
	if err != nil {
		return Argument{}, fmt.Errorf("%w: address %q: %v", ErrInvalidInput, addr, err)
	}
	norm, _ := ledger.NormalizeAddress(addr)
	return Argument{Kind: ArgPure, Type: TypeAddress, Value: norm, BCS: b}, nil
}

// PureOptionalU64 encodes an optional u64 the way the contract takes it: a
// vector<u64> with no element when absent and exactly one when present.
func PureOptionalU64(v *uint64) Argument {
	vals := []uint64{}
	if v != nil {
		vals = append(vals, *v)
	}
	b := appendULEB128(nil, uint64(len(vals)))
	for _, n := range vals {
		b = appendU64(b, n)
	}
	return Argument{Kind: ArgPure, Type: TypeVectorU64, Value: vals, BCS: b}
}

// ObjectArg passes an object by reference.
func ObjectArg(id string) (Argument, error) {
	norm, err := ledger.NormalizeAddress(id)
	if err != nil {
		return Argument{}, fmt.Errorf("%w: object id %q: %v", ErrInvalidInput, id, err)
	}
	return Argument{Kind: ArgObject, ObjectID: norm}, nil
}

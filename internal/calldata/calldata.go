// Package calldata wraps go-ethereum's ABI pack/unpack with the codec
// conventions the rest of the tree expects: unsigned call construction,
// bytes32 padding, and event log recovery keyed on topic0.
package calldata

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wayfinder-paths/adapter-runtime/internal/canon"
)

// Call is an unsigned call object: a target and its ABI-encoded calldata.
type Call struct {
	To   common.Address
	Data []byte
}

// ParseABI parses a JSON ABI fragment, panicking on malformed input since
// every caller passes a package-level constant validated at init time.
func ParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("calldata: invalid ABI literal: %v", err))
	}
	return parsed
}

// EncodeCall packs fn's arguments against parsed and returns the unsigned
// call object ready to broadcast to target.
func EncodeCall(parsed abi.ABI, target common.Address, fn string, args ...any) (Call, error) {
	data, err := parsed.Pack(fn, args...)
	if err != nil {
		return Call{}, canon.NewAdapterError("encode_call", canon.ErrSchema, fmt.Sprintf("pack %s: %v", fn, err))
	}
	return Call{To: target, Data: data}, nil
}

// Decode unpacks a raw return payload against fn's declared outputs. A
// zero-length payload decodes to the unit tuple (empty slice, no error) —
// the caller-visible shape for a reverted or empty multicall slot that was
// not itself flagged as failed.
func Decode(parsed abi.ABI, fn string, data []byte) ([]any, error) {
	if len(data) == 0 {
		return []any{}, nil
	}
	method, ok := parsed.Methods[fn]
	if !ok {
		return nil, canon.NewAdapterError("decode", canon.ErrSchema, fmt.Sprintf("unknown method %q", fn))
	}
	out, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, canon.NewAdapterError("decode", canon.ErrSchema, fmt.Sprintf("unpack %s: %v", fn, err))
	}
	return out, nil
}

// ToBytes32 left-pads a value (hex string, []byte, or common.Hash) into a
// 32-byte array, failing when the source is longer than 32 bytes.
func ToBytes32(value any) ([32]byte, error) {
	var raw []byte
	switch v := value.(type) {
	case [32]byte:
		return v, nil
	case common.Hash:
		return v, nil
	case []byte:
		raw = v
	case string:
		s := strings.TrimPrefix(v, "0x")
		if s == "" {
			return [32]byte{}, nil
		}
		if !common.IsHex("0x" + s) {
			return [32]byte{}, canon.NewAdapterError("to_bytes32", canon.ErrInput, "not valid hex: "+v)
		}
		raw = common.FromHex("0x" + s)
	default:
		return [32]byte{}, canon.NewAdapterError("to_bytes32", canon.ErrInput, fmt.Sprintf("unsupported type %T", value))
	}
	if len(raw) > 32 {
		return [32]byte{}, canon.NewAdapterError("to_bytes32", canon.ErrInput, "value exceeds 32 bytes")
	}
	var out [32]byte
	copy(out[32-len(raw):], raw)
	return out, nil
}

// ChecksumAddress returns the EIP-55 checksummed form, the boundary policy
// for every address field leaving this package. Lowercase form is used only
// internally as a map key (see LowerKey).
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// LowerKey normalizes an address for use as a comparison/map key; never
// surfaced to a caller.
func LowerKey(addr string) string {
	return strings.ToLower(common.HexToAddress(addr).Hex())
}

// EventSignature returns the topic0 for a canonical Solidity event
// signature, e.g. "Transfer(address,address,uint256)".
func EventSignature(sig string) common.Hash {
	return crypto.Keccak256Hash([]byte(sig))
}

// EventLog is the subset of an on-chain log this package recovers typed
// fields from.
type EventLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// DecodedEvent is a log whose topic0 matched a registered signature.
type DecodedEvent struct {
	Name   string
	Values map[string]any
}

// DecodeEvent recovers a typed event from a log using the ABI's declared
// event definitions, matching topic0 = keccak(signature). Logs whose topic0
// does not match any event in parsed are not an error — the caller should
// treat a nil, nil result as "ignored, unknown topic".
func DecodeEvent(parsed abi.ABI, log EventLog) (*DecodedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	ev, err := parsed.EventByID(log.Topics[0])
	if err != nil {
		return nil, nil
	}
	values := make(map[string]any)
	if len(log.Data) > 0 {
		if err := parsed.UnpackIntoMap(values, ev.Name, log.Data); err != nil {
			return nil, canon.NewAdapterError("decode_event", canon.ErrSchema, fmt.Sprintf("unpack %s: %v", ev.Name, err))
		}
	}
	for i, arg := range indexedInputs(ev) {
		if i+1 >= len(log.Topics) {
			break
		}
		values[arg.Name] = log.Topics[i+1]
	}
	return &DecodedEvent{Name: ev.Name, Values: values}, nil
}

func indexedInputs(ev *abi.Event) []abi.Argument {
	var out []abi.Argument
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			out = append(out, arg)
		}
	}
	return out
}

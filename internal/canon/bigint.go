package canon

import (
	"encoding/json"
	"math/big"
)

// BigInt wraps math/big.Int so base-unit quantities serialize as decimal
// strings, matching the JSON envelope convention the rest of the tree
// already uses for amounts (e.g. model.AmountInfo.AmountBaseUnits).
// Intermediate products like scaled_debt*variableBorrowIndex exceed 64
// bits, so every base-unit field in the canonical schema uses this type
// rather than int64/float64.
type BigInt struct {
	*big.Int
}

// NewBigInt wraps v, treating a nil v as zero.
func NewBigInt(v *big.Int) BigInt {
	if v == nil {
		return BigInt{big.NewInt(0)}
	}
	return BigInt{v}
}

// Zero returns a BigInt wrapping 0.
func Zero() BigInt { return BigInt{big.NewInt(0)} }

func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return json.Marshal("0")
	}
	return json.Marshal(b.Int.String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return &json.UnmarshalTypeError{Value: string(data), Type: nil}
	}
	b.Int = v
	return nil
}

// IsZero reports whether the wrapped value is zero or unset.
func (b BigInt) IsZero() bool {
	return b.Int == nil || b.Int.Sign() == 0
}

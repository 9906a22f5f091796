package canon

import "fmt"

// ErrorKind classifies why an adapter operation failed. It replaces the
// (bool, value_or_str) tuple convention with a typed error so callers can
// branch on failure class instead of parsing diagnostic strings.
type ErrorKind string

const (
	ErrConfig      ErrorKind = "config"      // missing wallet or signer
	ErrInput       ErrorKind = "input"       // non-positive amount, bad address
	ErrUnsupported ErrorKind = "unsupported" // operation not offered by protocol/chain
	ErrAllowance   ErrorKind = "allowance"   // approval failed
	ErrRPC         ErrorKind = "rpc"         // node error, timeout
	ErrRevert      ErrorKind = "revert"      // contract-level failure, reason decoded when available
	ErrProtocol    ErrorKind = "protocol"    // API error payload or HTTP status >= 400
	ErrSchema      ErrorKind = "schema"      // unexpected payload shape
	ErrArithmetic  ErrorKind = "arithmetic"  // overflow in pathological inputs
)

// AdapterError is the typed error every adapter capability returns in place
// of the source tuple's diagnostic string. Protocol and RevertReason are
// populated only when the kind makes them meaningful.
type AdapterError struct {
	Kind          ErrorKind
	Op            string // capability name, e.g. "lend", "get_full_user_state"
	Protocol      string
	ChainID       string
	RevertReason  string
	Err           error
	Msg           string
}

func (e *AdapterError) Error() string {
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Protocol != "" {
		base = fmt.Sprintf("%s[%s]", base, e.Protocol)
	}
	if e.Msg != "" {
		base = fmt.Sprintf("%s: %s", base, e.Msg)
	}
	if e.RevertReason != "" {
		base = fmt.Sprintf("%s (revert: %s)", base, e.RevertReason)
	}
	return base
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError builds an AdapterError for the given capability and kind.
func NewAdapterError(op string, kind ErrorKind, msg string) *AdapterError {
	return &AdapterError{Op: op, Kind: kind, Msg: msg}
}

// Unsupportedf builds the Unsupported-kind error the contract requires for
// capabilities a protocol does not offer — the capability is absent from the
// adapter's Supports() set, not silently no-op'd.
func Unsupportedf(op, protocol, format string, args ...any) *AdapterError {
	return &AdapterError{
		Op:       op,
		Kind:     ErrUnsupported,
		Protocol: protocol,
		Msg:      fmt.Sprintf(format, args...),
	}
}

// Wrap tags a lower-level error with a capability/kind pair, preserving it
// via Unwrap for errors.Is/As.
func Wrap(op string, kind ErrorKind, err error) *AdapterError {
	if err == nil {
		return nil
	}
	return &AdapterError{Op: op, Kind: kind, Err: err, Msg: err.Error()}
}

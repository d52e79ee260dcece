package chain

import "github.com/pkg/errors"

type Kind int

const (
	KindAuthorization Kind = iota + 1
	KindValidation
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

//Error is a protocol failure. Reason is the revert string a caller sees.
type Error struct {
	Kind   Kind
	Reason string
}

func NewError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	return e.Reason
}

//KindOf returns the kind of the first protocol error in err's chain, or 0.
func KindOf(err error) Kind {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Kind
	}
	return 0
}

//ReasonOf returns the revert reason of a protocol error, or err.Error() for anything else.
func ReasonOf(err error) string {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Reason
	}
	return err.Error()
}

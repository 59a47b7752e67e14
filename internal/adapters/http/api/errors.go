package api

import (
	"errors"
	"net/http"

	"github.com/okian/parkwise/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNullPayload = errors.New("Event cannot be null") //nolint:staticcheck // surfaced verbatim to clients
	ErrInternal    = errors.New("internal error")
)

// opError tags an error with the handler operation and an API kind.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	if e.err == nil {
		return e.op + ": " + e.kind.Error()
	}
	return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// WrapKind annotates err with op and kind. Both stay reachable via errors.Is.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// statusFor maps an error to its HTTP status and the kind label clients see
// in the code field. Domain kinds are never rewritten.
func statusFor(err error) (int, string) {
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrNullPayload) {
		return http.StatusBadRequest, model.KindValidation.String()
	}
	kind := model.KindOf(err)
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest, kind.String()
	case model.KindNotFound:
		return http.StatusNotFound, kind.String()
	case model.KindBusiness:
		return http.StatusConflict, kind.String()
	default:
		return http.StatusInternalServerError, kind.String()
	}
}

// clientMessage strips the operation prefix from errors shown to callers.
func clientMessage(err error) string {
	var oe *opError
	if errors.As(err, &oe) {
		if oe.err == nil {
			return oe.kind.Error()
		}
		if errors.Is(oe.kind, ErrBadRequest) {
			return oe.err.Error()
		}
		return oe.kind.Error() + ": " + oe.err.Error()
	}
	return err.Error()
}

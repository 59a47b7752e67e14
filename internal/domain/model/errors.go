package model

import "errors"

// Kind classifies domain errors so callers can react to the category of a
// failure without matching on message text.
type Kind uint8

// Error kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindBusiness
	KindNotFound
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusiness:
		return "business"
	case KindNotFound:
		return "not_found"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Business reports whether k depends on current garage state. Not-found
// errors are a sub-category of business errors.
func (k Kind) Business() bool {
	return k == KindBusiness || k == KindNotFound
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newKindError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// KindOf returns the kind of the first kinded error in err's chain.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Validation errors.
var (
	ErrInvalidEvent  = newKindError(KindValidation, "invalid event")
	ErrInvalidGarage = newKindError(KindValidation, "invalid garage configuration")
	ErrInvalidQuery  = newKindError(KindValidation, "invalid query")
)

// Business rule violations.
var (
	ErrDuplicateEntry       = newKindError(KindBusiness, "duplicate entry")
	ErrVehicleAlreadyParked = newKindError(KindBusiness, "vehicle already parked")
	ErrSpotOccupied         = newKindError(KindBusiness, "spot occupied")
	ErrSectorFull           = newKindError(KindBusiness, "sector full")
	ErrGarageBusy           = newKindError(KindBusiness, "garage has parked vehicles")
)

// Not-found errors.
var (
	ErrSpotNotFound    = newKindError(KindNotFound, "spot not found")
	ErrSectorNotFound  = newKindError(KindNotFound, "sector not found")
	ErrVehicleNotFound = newKindError(KindNotFound, "vehicle not found")
	ErrEntryNotFound   = newKindError(KindNotFound, "entry record not found")
)

// Invariant violations. Reaching one of these is a defect.
var (
	ErrOccupancyOverflow  = newKindError(KindInvariant, "sector occupancy above capacity")
	ErrOccupancyUnderflow = newKindError(KindInvariant, "sector occupancy below zero")
	ErrSpotVacant         = newKindError(KindInvariant, "release of a vacant spot")
	ErrReadOnly           = newKindError(KindInvariant, "mutation inside a read-only transaction")
)

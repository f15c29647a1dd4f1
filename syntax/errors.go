package syntax

import "github.com/pkg/errors"

var (
	// ErrFuelExhausted is returned when a computation runs out of its work budget.
	ErrFuelExhausted = errors.New("fuel exhausted")
	// ErrUnsupported is returned for regex constructs that have no byte-level meaning here.
	ErrUnsupported = errors.New("unsupported regex construct")
)

func fuelError(used, limit uint64) error {
	return errors.Wrapf(ErrFuelExhausted, "used %d of %d", used, limit)
}

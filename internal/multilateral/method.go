package multilateral

import (
	"errors"
	"fmt"
)

// Method selects the time dummy regression model
type Method string

const (
	// TPD is the Time Product Dummy method
	TPD Method = "TPD"
	// TDH is the Time Dummy Hedonic method
	TDH Method = "TDH"
)

var (
	// ErrInvalidMethod is returned for any method other than TPD or TDH
	ErrInvalidMethod = errors.New("invalid method or not implemented yet")
	// ErrCharacteristicsRequired is returned when TDH is requested without characteristics
	ErrCharacteristicsRequired = errors.New("characteristics required for TDH")
	// ErrNonPositivePrice is returned when a price cannot be logged
	ErrNonPositivePrice = errors.New("prices must be positive")
	// ErrPeriodMismatch is returned when the period count passed to TimeDummy
	// does not match the panel
	ErrPeriodMismatch = errors.New("number of periods does not match panel")
)

// Methods lists the supported methods
func Methods() []Method {
	return []Method{TPD, TDH}
}

// Valid reports whether the method is supported
func (m Method) Valid() bool {
	return m == TPD || m == TDH
}

// RequiresCharacteristics reports whether the method regresses on characteristics
func (m Method) RequiresCharacteristics() bool {
	return m == TDH
}

// String returns the method name
func (m Method) String() string {
	return string(m)
}

// ParseMethod converts a name into a Method. Matching is exact.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
	return m, nil
}

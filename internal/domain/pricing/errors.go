package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuantity is matched by InvalidQuantityError.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrRuleLookupFailed is matched by RuleLookupError.
	ErrRuleLookupFailed = errors.New("rule lookup failed")
)

// InvalidQuantityError indicates a request with quantity below 1 or one that
// is not a whole number.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
	// Raw is the quantity as requested when it is not a whole number.
	Raw string
}

func (e *InvalidQuantityError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("quantity %s for product %s must be a whole number", e.Raw, e.ProductID)
	}
	return fmt.Sprintf("quantity %d for product %s must be at least 1", e.Quantity, e.ProductID)
}

// Is reports whether target is ErrInvalidQuantity.
func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

// RuleLookupError indicates the rule store could not serve a required read.
type RuleLookupError struct {
	Op  string
	Err error
}

func (e *RuleLookupError) Error() string {
	return fmt.Sprintf("rule lookup failed: %s: %v", e.Op, e.Err)
}

func (e *RuleLookupError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRuleLookupFailed.
func (e *RuleLookupError) Is(target error) bool {
	return target == ErrRuleLookupFailed
}

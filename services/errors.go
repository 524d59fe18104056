package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by a Store when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMissingExchangeRate rejects a write in a foreign currency without a
	// positive rate. A rate of 1 is never substituted.
	ErrMissingExchangeRate = errors.New("missing exchange rate")

	// ErrLinkExists is returned when a material already has a work link.
	ErrLinkExists = errors.New("material is already linked to a work")

	// ErrStaleReconciliation marks a reconciliation job superseded by a newer
	// edit of the same work.
	ErrStaleReconciliation = errors.New("reconciliation superseded by a newer edit")
)

// ValidationError carries field-level messages for a rejected edit.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// asValidationError converts ozzo validation errors into a ValidationError.
// Other errors are returned unchanged.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		if v == nil {
			continue
		}
		fields[k] = v.Error()
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// OverflowError is returned when a derived quantity exceeds QuantityCeiling.
type OverflowError struct {
	ItemID   string
	Quantity decimal.Decimal
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("derived quantity %s for item %q exceeds %s; reduce the coefficients",
		e.Quantity.String(), e.ItemID, QuantityCeiling.String())
}

// DanglingLinkError describes a link whose work or material no longer resolves.
type DanglingLinkError struct {
	LinkID    string
	MissingID string
}

func (e *DanglingLinkError) Error() string {
	return fmt.Sprintf("link %q references missing item %q", e.LinkID, e.MissingID)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrEmptySlice     = errors.New("slice cannot be empty")
	ErrInvalidStatus  = errors.New("invalid classification status")
	ErrInvalidReceipt = errors.New("invalid receipt")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateReceipt validates a receipt before it is stored.
func validateReceipt(r *model.Receipt) error {
	if r == nil {
		return fmt.Errorf("%w: receipt", ErrNilParameter)
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidReceipt)
	}
	for f := range r.Fields {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidReceipt, f)
		}
	}
	return validateStatus(r.Status)
}

// validateStatus accepts the zero value as pending.
func validateStatus(status model.ClassificationStatus) error {
	switch status {
	case "",
		model.StatusPending,
		model.StatusUnclassified,
		model.StatusClassifiedByRule,
		model.StatusUserModified:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
}

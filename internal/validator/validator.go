// Package validator wraps go-playground/validator behind the one
// operation product ingestion needs: tag-based checks on normalized
// records.
package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator holds a shared validator instance. The instance caches
// struct metadata and is safe for concurrent use, so callers keep one
// around instead of rebuilding it per record.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateStruct checks s against its validate tags, wrapping any
// violations so callers can surface the offending fields.
func (v *Validator) ValidateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

package validate

import (
	"fmt"
	"strings"
)

// FieldError field error to be nested by other errors
type FieldError struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// NewFieldError create new field error
func NewFieldError(domain string, reason string) *FieldError {
	return &FieldError{domain, reason}
}

// ValidationError wraps field errors so they can travel as an error value
type ValidationError struct {
	Fields []*FieldError
}

func (ve *ValidationError) Error() string {
	reasons := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.Domain, f.Reason))
	}
	return "validation failed: " + strings.Join(reasons, "; ")
}

// Validator .
type Validator interface {
	Struct(s interface{}) []*FieldError
	Empty(varName string, s interface{}) []*FieldError
}

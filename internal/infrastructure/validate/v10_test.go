package validate

import (
	"strings"
	"testing"
)

type signUpForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestStruct(t *testing.T) {
	v := NewValidator()

	if errs := v.Struct(&signUpForm{Email: "a@b.co", Password: "secret"}); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}

	errs := v.Struct(&signUpForm{Email: "nope"})
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if errs[0].Domain != "email" || errs[1].Domain != "password" {
		t.Errorf("domains = %q, %q; json names expected", errs[0].Domain, errs[1].Domain)
	}
	if !strings.Contains(errs[1].Reason, "required") {
		t.Errorf("reason %q should be translated", errs[1].Reason)
	}
}

func TestEmpty(t *testing.T) {
	v := NewValidator()
	if errs := v.Empty("time", ""); len(errs) != 1 || errs[0].Reason != "time is required" {
		t.Errorf("Empty() = %v", errs)
	}
	if errs := v.Empty("time", "18:00"); errs != nil {
		t.Errorf("Empty() = %v, want nil", errs)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []*FieldError{NewFieldError("title", "title is required")}}
	if got := err.Error(); got != "validation failed: title: title is required" {
		t.Errorf("Error() = %q", got)
	}
}

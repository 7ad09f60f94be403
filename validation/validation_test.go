package validation

import (
	"errors"
	"testing"
)

type signup struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role" validate:"omitempty,oneof=ADMIN MANAGER EMPLOYEE"`
	Score    float64 `json:"score" validate:"gte=0,lte=100"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := Struct(signup{Email: "nope", Password: "123", Role: "BOSS", Score: 101})
	want := map[string]string{
		"email":    "invalid_email",
		"password": "out_of_range(min=6)",
		"role":     "invalid_choice",
		"score":    "out_of_range(lte=100)",
	}
	for field, code := range want {
		if v[field] != code {
			t.Errorf("%s = %q, want %q", field, v[field], code)
		}
	}
}

func TestStructValid(t *testing.T) {
	v := Struct(signup{Email: "a@b.io", Password: "secret", Score: 10})
	if !v.Empty() {
		t.Fatalf("expected no violations, got %v", v)
	}
	if v.Err() != nil {
		t.Fatal("expected nil error for empty violations")
	}
}

func TestViolationsAsError(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	OneOf("status", "X", []string{"NEW"}, v)
	err := v.Err()
	var got Violations
	if !errors.As(err, &got) {
		t.Fatalf("expected Violations error, got %T", err)
	}
	if got["name"] != "required" || got["status"] != "invalid_choice" {
		t.Fatalf("unexpected violations %v", got)
	}
	if err.Error() != "validation failed: name: required, status: invalid_choice" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

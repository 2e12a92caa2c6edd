package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"operator@example.com", "review.team+queue@registry.go.th"}
	for _, email := range valid {
		if !ValidateEmail(email) {
			t.Fatalf("%s should validate", email)
		}
	}

	invalid := []string{"", "operator", "operator@", "@example.com", "operator@example"}
	for _, email := range invalid {
		if ValidateEmail(email) {
			t.Fatalf("%s should not validate", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if ok, _ := ValidatePassword("short"); ok {
		t.Fatalf("7-character passwords must be rejected")
	}
	if ok, msg := ValidatePassword("longenough"); !ok {
		t.Fatalf("expected password to pass, got %q", msg)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  Somchai Logistics  "); got != "Somchai Logistics" {
		t.Fatalf("expected surrounding whitespace stripped, got %q", got)
	}
	if got := SanitizeInput("EQ-\x002291"); got != "EQ-2291" {
		t.Fatalf("expected NUL bytes stripped, got %q", got)
	}
}

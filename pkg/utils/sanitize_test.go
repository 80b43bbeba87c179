package utils

import "testing"

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"  E-12 ":        "E-12",
		"door\x00\x07-3": "door-3",
		"Elevators":      "Elevators",
	}
	for in, want := range cases {
		if got := SanitizeIdentifier(in); got != want {
			t.Fatalf("SanitizeIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateAndSanitizeEmail(t *testing.T) {
	got, err := ValidateAndSanitizeEmail("  Ops@Example.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ops@example.com" {
		t.Fatalf("expected lowercased address, got %q", got)
	}

	if _, err := ValidateAndSanitizeEmail("not-an-address"); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

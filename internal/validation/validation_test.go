package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ana@X.Com "); got != "ana@x.com" {
		t.Fatalf("expected normalized email, got %q", got)
	}
}

func TestValidateName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"valid", "Ana Ruiz", nil},
		{"valid accents", "José Muñoz", nil},
		{"too short", "A", ErrNameTooShort},
		{"too long", strings.Repeat("a", 256), ErrNameTooLong},
		{"digits", "Ana123", ErrNameCharset},
		{"symbols", "Ana;DROP", ErrNameCharset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateName(tc.input); !errors.Is(got, tc.want) {
				t.Fatalf("ValidateName(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"valid", "ana@x.com", nil},
		{"uppercase normalized", "ANA@X.COM", nil},
		{"too short", "a@b", ErrEmailTooShort},
		{"too long", strings.Repeat("a", 250) + "@x.com", ErrEmailTooLong},
		{"no at", "ana.x.com", ErrEmailInvalid},
		{"no dot", "ana@xcom", ErrEmailInvalid},
		{"spaces", "ana ruiz@x.com", ErrEmailInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateEmail(tc.input); !errors.Is(got, tc.want) {
				t.Fatalf("ValidateEmail(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"valid", "Abcd123!", nil},
		{"too short", "Ab1!", ErrPasswordShort},
		{"too long", "A1!" + strings.Repeat("a", 100), ErrPasswordLong},
		{"no upper", "abcd123!", ErrPasswordClasses},
		{"no lower", "ABCD123!", ErrPasswordClasses},
		{"no digit", "Abcdefg!", ErrPasswordClasses},
		{"no special", "Abcd1234", ErrPasswordClasses},
		{"special outside set", "Abcd1234#", ErrPasswordClasses},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidatePassword(tc.input); !errors.Is(got, tc.want) {
				t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateRegistration_FirstViolationWins(t *testing.T) {
	if got := ValidateRegistration("A", "bad", "short"); !errors.Is(got, ErrNameTooShort) {
		t.Fatalf("expected name violation first, got %v", got)
	}
	if got := ValidateRegistration("Ana Ruiz", "bad", "short"); !errors.Is(got, ErrEmailTooShort) {
		t.Fatalf("expected email violation second, got %v", got)
	}
	if got := ValidateRegistration("Ana Ruiz", "ana@x.com", "short"); !errors.Is(got, ErrPasswordShort) {
		t.Fatalf("expected password violation last, got %v", got)
	}
}

func TestValidateLogin(t *testing.T) {
	if got := ValidateLogin("ana@x.com", "anything"); got != nil {
		t.Fatalf("expected valid login input, got %v", got)
	}
	if got := ValidateLogin("ana@x.com", ""); !errors.Is(got, ErrPasswordMissing) {
		t.Fatalf("expected ErrPasswordMissing, got %v", got)
	}
	if got := ValidateLogin("bad", "anything"); got == nil {
		t.Fatalf("expected email violation")
	}
}

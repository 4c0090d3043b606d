package pkg

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want ErrorKind
	}{
		{"", ErrorEmptyOrWhitespace},
		{"   \t", ErrorEmptyOrWhitespace},
		{"John Doe", ErrorNone},
		{"x", ErrorNone},
	}
	for _, tt := range tests {
		if got := ValidateName(tt.raw, LocaleEnglish); got != tt.want {
			t.Errorf("ValidateName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestValidateCardNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want ErrorKind
	}{
		{"empty", "", ErrorTooShort},
		{"twelve digits", "411111111111", ErrorTooShort},
		{"twelve digits with spaces", "4111 1111 1111", ErrorTooShort},
		{"letters only", "abcdefghijklmnop", ErrorTooShort},
		{"letters mixed in", "4111 1111 1111 11a1", ErrorInvalidFormat},
		{"twenty digits", "41111111111111111111", ErrorInvalidFormat},
		{"checksum", "4111111111111112", ErrorInvalidChecksum},
		{"visa", "4111111111111111", ErrorNone},
		{"visa grouped", "4111 1111 1111 1111", ErrorNone},
		{"visa dashed", "4111-1111-1111-1111", ErrorNone},
		{"mastercard", "5555555555554444", ErrorNone},
		{"amex", "378282246310005", ErrorNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidateCardNumber(tt.raw, LocaleEnglish); got != tt.want {
				t.Errorf("ValidateCardNumber(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateCardNumberShortInputsAreTooShort(t *testing.T) {
	t.Parallel()

	digits := "4111111111111"
	for n := 0; n < MinCardNumberDigits; n++ {
		raw := digits[:n]
		if got := ValidateCardNumber(raw, LocaleEnglish); got != ErrorTooShort {
			t.Errorf("ValidateCardNumber(%q) = %q, want too-short", raw, got)
		}
		spaced := ""
		for i, r := range raw {
			if i > 0 && i%4 == 0 {
				spaced += " "
			}
			spaced += string(r)
		}
		if got := ValidateCardNumber(spaced, LocaleEnglish); got != ErrorTooShort {
			t.Errorf("ValidateCardNumber(%q) = %q, want too-short", spaced, got)
		}
	}
}

func TestValidateCardNumberArabicDigits(t *testing.T) {
	t.Parallel()

	raw := "٤١١١ ١١١١ ١١١١ ١١١١"
	if got := ValidateCardNumber(raw, LocaleArabic); got != ErrorNone {
		t.Errorf("arabic locale: got %q, want none", got)
	}
	if got := ValidateCardNumber(raw, LocaleEnglish); got != ErrorTooShort {
		t.Errorf("english locale: got %q, want too-short", got)
	}
}

func TestValidateExpiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want ErrorKind
	}{
		{"empty", "", ErrorTooShort},
		{"four chars", "1/27", ErrorTooShort},
		{"only marks", "\u200e\u200f\u200e\u200f\u200e", ErrorTooShort},
		{"marks hide short value", "\u200e12/2\u200f", ErrorTooShort},
		{"past two digit pivot", "12/99", ErrorInvalidDate},
		{"month zero", "00/30", ErrorInvalidDate},
		{"month thirteen", "13/30", ErrorInvalidDate},
		{"no separator", "12300", ErrorInvalidDate},
		{"letters", "ab/cd", ErrorInvalidDate},
		{"last month", "09/26", ErrorInvalidDate},
		{"current month", "10/26", ErrorNone},
		{"future", "12/30", ErrorNone},
		{"four digit year", "12/2030", ErrorNone},
		{"spaced", "12 / 30", ErrorNone},
		{"rtl marks", "\u200f12\u200e/\u200f30", ErrorNone},
		{"isolates", "\u206812/30\u2069", ErrorNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := validateExpiryAt(tt.raw, LocaleEnglish, testNow); got != tt.want {
				t.Errorf("validateExpiryAt(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateExpiryArabicDigits(t *testing.T) {
	t.Parallel()

	if got := validateExpiryAt("١٢/٣٠", LocaleArabic, testNow); got != ErrorNone {
		t.Errorf("got %q, want none", got)
	}
}

func TestValidateCVC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want ErrorKind
	}{
		{"", ErrorTooShort},
		{"12", ErrorTooShort},
		{"123", ErrorNone},
		{"1234", ErrorNone},
		{"12345", ErrorInvalidFormat},
		{"12a3", ErrorInvalidFormat},
	}
	for _, tt := range tests {
		if got := ValidateCVC(tt.raw, LocaleEnglish); got != tt.want {
			t.Errorf("ValidateCVC(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDetectCardBrand(t *testing.T) {
	t.Parallel()

	tests := map[string]CardBrand{
		"4111111111111111": CardBrandVisa,
		"5555555555554444": CardBrandMastercard,
		"2223003122003222": CardBrandMastercard,
		"378282246310005":  CardBrandAmex,
		"6011111111111117": CardBrandUnknown,
		"":                 CardBrandUnknown,
	}
	for number, want := range tests {
		if got := DetectCardBrand(number); got != want {
			t.Errorf("DetectCardBrand(%q) = %q, want %q", number, got, want)
		}
	}
}

func TestMaskCardNumber(t *testing.T) {
	t.Parallel()

	if got := MaskCardNumber("4111111111111111"); got != "411111******1111" {
		t.Errorf("got %q", got)
	}
	if got := MaskCardNumber("4111"); got != "****" {
		t.Errorf("got %q", got)
	}
}

package pkg

import (
	"strings"
	"time"
	"unicode"
)

// Locale selects how field input is read. Arabic input may carry
// Arabic-Indic digits which are folded to ASCII before validation.
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleArabic  Locale = "ar"
)

type ErrorKind string

const (
	ErrorNone              ErrorKind = ""
	ErrorEmptyOrWhitespace ErrorKind = "empty-or-whitespace"
	ErrorTooShort          ErrorKind = "too-short"
	ErrorInvalidFormat     ErrorKind = "invalid-format"
	ErrorInvalidDate       ErrorKind = "invalid-date"
	ErrorInvalidChecksum   ErrorKind = "invalid-checksum"
)

const (
	MinCardNumberDigits = 13
	MaxCardNumberDigits = 19
	MinExpiryLength     = 5
	MinCVCDigits        = 3
	MaxCVCDigits        = 4
)

// ValidateName only requires something other than whitespace.
func ValidateName(raw string, _ Locale) ErrorKind {
	if strings.TrimSpace(raw) == "" {
		return ErrorEmptyOrWhitespace
	}
	return ErrorNone
}

// ValidateCardNumber checks length first, so any input with fewer than
// MinCardNumberDigits digits is TooShort whatever else it contains.
func ValidateCardNumber(raw string, locale Locale) ErrorKind {
	number := stripCardSeparators(foldDigits(raw, locale))
	if countDigits(number) < MinCardNumberDigits {
		return ErrorTooShort
	}
	if !isDigits(number) || len(number) > MaxCardNumberDigits {
		return ErrorInvalidFormat
	}
	if !passesLuhn(number) {
		return ErrorInvalidChecksum
	}
	return ErrorNone
}

func ValidateExpiry(raw string, locale Locale) ErrorKind {
	return validateExpiryAt(raw, locale, time.Now())
}

func validateExpiryAt(raw string, locale Locale, now time.Time) ErrorKind {
	expiry := cleanExpiry(raw, locale)
	if len([]rune(expiry)) < MinExpiryLength {
		return ErrorTooShort
	}
	month, year, ok := splitExpiry(expiry)
	if !ok || len(month) != 2 || !isDigits(month) || !isDigits(year) {
		return ErrorInvalidDate
	}
	layout := "01/06"
	if len(year) == 4 {
		layout = "01/2006"
	} else if len(year) != 2 {
		return ErrorInvalidDate
	}
	parsed, err := time.Parse(layout, month+"/"+year)
	if err != nil {
		return ErrorInvalidDate
	}
	// card stays valid through the last second of its expiry month
	lastDay := time.Date(parsed.Year(), parsed.Month()+1, 0, 23, 59, 59, 0, time.UTC)
	if !lastDay.After(now.UTC()) {
		return ErrorInvalidDate
	}
	return ErrorNone
}

func ValidateCVC(raw string, locale Locale) ErrorKind {
	cvc := strings.TrimSpace(foldDigits(raw, locale))
	if countDigits(cvc) < MinCVCDigits {
		return ErrorTooShort
	}
	if !isDigits(cvc) || len(cvc) > MaxCVCDigits {
		return ErrorInvalidFormat
	}
	return ErrorNone
}

// foldDigits rewrites Arabic-Indic (U+0660..) and Extended Arabic-Indic
// (U+06F0..) digits as ASCII for the Arabic locale only.
func foldDigits(raw string, locale Locale) string {
	if locale != LocaleArabic {
		return raw
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, raw)
}

func stripCardSeparators(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, raw)
}

// cleanExpiry drops directional marks (LRM, RLM, ALM, embeddings, isolates)
// and whitespace that right-to-left input methods leave around the slash.
func cleanExpiry(raw string, locale Locale) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Bidi_Control, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, foldDigits(raw, locale))
}

func splitExpiry(expiry string) (month, year string, ok bool) {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func passesLuhn(number string) bool {
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		n := int(number[i] - '0')
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}

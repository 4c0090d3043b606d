package pkg

import (
	"fmt"
	"strings"
)

// NormalizedCardPayload is the canonical card source sent to the gateway.
type NormalizedCardPayload struct {
	Name   string `json:"name"`
	Number string `json:"number"`
	Month  string `json:"month"`
	Year   string `json:"year"`
	CVC    string `json:"cvc"`
}

func (p NormalizedCardPayload) String() string {
	return fmt.Sprintf("NormalizedCardPayload {name: %v, number: %v, month: %v, year: %v}",
		p.Name, MaskCardNumber(p.Number), p.Month, p.Year)
}

// Normalize turns four already validated raw field values into a payload.
// It does not validate again; callers must have checked that every field
// is error free.
func Normalize(name, number, expiry, cvc string, locale Locale) NormalizedCardPayload {
	month, year, _ := splitExpiry(cleanExpiry(expiry, locale))
	if len(month) == 1 {
		month = "0" + month
	}
	return NormalizedCardPayload{
		Name:   strings.TrimSpace(name),
		Number: stripCardSeparators(foldDigits(number, locale)),
		Month:  month,
		Year:   year,
		CVC:    strings.TrimSpace(foldDigits(cvc, locale)),
	}
}

// NormalizeForm builds the payload from the current raw values of a form.
func NormalizeForm(f *Form) NormalizedCardPayload {
	return Normalize(
		f.Get(FieldName).RawValue,
		f.Get(FieldCardNumber).RawValue,
		f.Get(FieldExpiry).RawValue,
		f.Get(FieldCVC).RawValue,
		f.Locale,
	)
}

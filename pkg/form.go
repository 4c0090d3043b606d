package pkg

import (
	"fmt"
	"strings"
)

type Field int

const (
	FieldName Field = iota
	FieldCardNumber
	FieldExpiry
	FieldCVC
)

var allFields = [...]Field{FieldName, FieldCardNumber, FieldExpiry, FieldCVC}

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldCardNumber:
		return "card-number"
	case FieldExpiry:
		return "expiry"
	case FieldCVC:
		return "cvc"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

type FormFieldState struct {
	RawValue  string    `json:"raw_value"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	IsFilled  bool      `json:"is_filled"`
}

func (s FormFieldState) HasError() bool {
	return s.ErrorKind != ErrorNone
}

// Form holds the state of the four card fields. The zero value is an
// empty form in the English locale.
type Form struct {
	Locale Locale
	fields [len(allFields)]FormFieldState
}

func NewForm(locale Locale) *Form {
	return &Form{Locale: locale}
}

// Set stores a new raw value, re-validates it and returns the field state.
func (f *Form) Set(field Field, raw string) FormFieldState {
	state := FieldState(field, raw, f.Locale)
	f.fields[field] = state
	return state
}

func (f *Form) Get(field Field) FormFieldState {
	return f.fields[field]
}

// Revalidate runs every validator again against the stored raw values and
// reports whether all of them passed.
func (f *Form) Revalidate() bool {
	ok := true
	for _, field := range allFields {
		state := f.Set(field, f.fields[field].RawValue)
		if state.HasError() {
			ok = false
		}
	}
	return ok
}

func (f *Form) States() [4]FormFieldState {
	return f.fields
}

// FieldState validates raw for the given field. IsFilled comes only from
// the raw value, never from the validation outcome.
func FieldState(field Field, raw string, locale Locale) FormFieldState {
	return FormFieldState{
		RawValue:  raw,
		ErrorKind: validatorFor(field)(raw, locale),
		IsFilled:  isFilled(field, raw, locale),
	}
}

// SubmitEnabled is the pure enabled condition shared by every front-end:
// all fields filled, none in error, and no submission in flight.
func SubmitEnabled(fields [4]FormFieldState, isSubmitting bool) bool {
	if isSubmitting {
		return false
	}
	for _, s := range fields {
		if !s.IsFilled || s.HasError() {
			return false
		}
	}
	return true
}

func validatorFor(field Field) func(string, Locale) ErrorKind {
	switch field {
	case FieldName:
		return ValidateName
	case FieldCardNumber:
		return ValidateCardNumber
	case FieldExpiry:
		return ValidateExpiry
	case FieldCVC:
		return ValidateCVC
	}
	panic(fmt.Sprintf("no validator for %v", field))
}

func isFilled(field Field, raw string, locale Locale) bool {
	switch field {
	case FieldCardNumber:
		return stripCardSeparators(raw) != ""
	case FieldExpiry:
		return cleanExpiry(raw, locale) != ""
	default:
		return strings.TrimSpace(raw) != ""
	}
}

package pkg

import "strings"

type CardBrand string

const (
	CardBrandVisa       CardBrand = "visa"
	CardBrandMastercard CardBrand = "mastercard"
	CardBrandAmex       CardBrand = "amex"
	CardBrandUnknown    CardBrand = ""
)

// DetectCardBrand guesses the network from the leading digits of a
// digits-only card number.
func DetectCardBrand(number string) CardBrand {
	if number == "" {
		return CardBrandUnknown
	}
	if number[0] == '4' {
		return CardBrandVisa
	}
	if len(number) >= 2 {
		p2 := number[:2]
		if p2 == "34" || p2 == "37" {
			return CardBrandAmex
		}
		if p2 >= "51" && p2 <= "55" {
			return CardBrandMastercard
		}
	}
	if len(number) >= 4 {
		p4 := number[:4]
		if p4 >= "2221" && p4 <= "2720" {
			return CardBrandMastercard
		}
	}
	return CardBrandUnknown
}

// MaskCardNumber keeps the first six and last four digits, the only part
// of a PAN that may show up in logs.
func MaskCardNumber(number string) string {
	if len(number) < 10 {
		return strings.Repeat("*", len(number))
	}
	return number[:6] + strings.Repeat("*", len(number)-10) + number[len(number)-4:]
}

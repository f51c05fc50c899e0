package shop

import (
	"strings"
	"unicode"
)

// Address is a delivery address as the backend stores it.
type Address struct {
	PostalCode string `json:"postal_code"`
	Number     string `json:"number"`
	Street     string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Complement string `json:"complement"`
	Province   string `json:"province"`
}

// NormalizePostalCode strips everything but digits, so "01310-100" becomes
// "01310100".
func NormalizePostalCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, code)
}

// Normalized returns a with a digits-only postal code and trimmed fields.
func (a Address) Normalized() Address {
	return Address{
		PostalCode: NormalizePostalCode(a.PostalCode),
		Number:     strings.TrimSpace(a.Number),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		Complement: strings.TrimSpace(a.Complement),
		Province:   strings.TrimSpace(a.Province),
	}
}

// Differs reports whether other is a different address than a, ignoring surrounding
// whitespace. A nil stored address always differs.
func (a *Address) Differs(other Address) bool {
	if a == nil {
		return true
	}
	x, y := a.trimmed(), other.trimmed()
	return x != y
}

func (a Address) trimmed() Address {
	return Address{
		PostalCode: strings.TrimSpace(a.PostalCode),
		Number:     strings.TrimSpace(a.Number),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		Complement: strings.TrimSpace(a.Complement),
		Province:   strings.TrimSpace(a.Province),
	}
}

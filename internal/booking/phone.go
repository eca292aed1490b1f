package booking

import "strings"

// PhoneFormat normalizes user-entered phone numbers into E.164-like form for one
// national numbering plan.
type PhoneFormat struct {
	CountryCode    string `yaml:"country_code"`
	TrunkPrefix    string `yaml:"trunk_prefix"`
	NationalLength int    `yaml:"national_length"`
}

// Normalize strips everything but digits and prefixes the country code when it can be
// inferred. Input it cannot interpret is returned unchanged. Normalize(Normalize(p)) ==
// Normalize(p) for every p.
func (f PhoneFormat) Normalize(phone string) string {
	digits := digitsOnly(phone)
	if digits == "" || f.CountryCode == "" {
		return phone
	}
	switch {
	case strings.HasPrefix(digits, f.CountryCode):
		return "+" + digits
	case f.TrunkPrefix != "" && strings.HasPrefix(digits, f.TrunkPrefix):
		return "+" + f.CountryCode + digits[len(f.TrunkPrefix):]
	case f.NationalLength > 0 && len(digits) == f.NationalLength:
		return "+" + f.CountryCode + digits
	}
	return phone
}

// Digits returns only the ASCII digits of phone.
func Digits(phone string) string {
	return digitsOnly(phone)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

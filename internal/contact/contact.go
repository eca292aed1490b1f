// Package contact builds the deep links behind the call, chat and mail buttons.
package contact

import (
	"net/url"
	"strings"

	"primedetail.kg/detail-web/internal/booking"
)

// TelURL returns a tel: link dialing phone in international form.
func TelURL(phone string) string {
	digits := booking.Digits(phone)
	if digits == "" {
		return ""
	}
	return "tel:+" + digits
}

// WhatsAppURL opens a WhatsApp chat with phone, optionally prefilled with text.
func WhatsAppURL(phone, text string) string {
	digits := booking.Digits(phone)
	if digits == "" {
		return ""
	}
	u := "https://wa.me/" + digits
	if text = strings.TrimSpace(text); text != "" {
		u += "?text=" + url.QueryEscape(text)
	}
	return u
}

// TelegramURL accepts a bare handle, an @handle or a full t.me link.
func TelegramURL(handle string) string {
	h := strings.TrimSpace(handle)
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "https://") || strings.HasPrefix(h, "http://") {
		return h
	}
	h = strings.TrimPrefix(h, "@")
	h = strings.TrimPrefix(h, "t.me/")
	return "https://t.me/" + h
}

// MailtoURL returns a mailto: link with an optional subject.
func MailtoURL(email, subject string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	u := "mailto:" + email
	if subject = strings.TrimSpace(subject); subject != "" {
		u += "?subject=" + url.PathEscape(subject)
	}
	return u
}

// DisplayPhone groups a phone number for humans. Numbers matching the plan are printed
// as "+996 555 123 456" (three-digit groups) or "+1 (555) 123-4567" for NANP; anything
// else is returned unchanged.
func DisplayPhone(phone string, plan booking.PhoneFormat) string {
	normalized := plan.Normalize(phone)
	digits := booking.Digits(normalized)
	if plan.CountryCode == "" || !strings.HasPrefix(digits, plan.CountryCode) {
		return phone
	}
	national := digits[len(plan.CountryCode):]
	if plan.NationalLength > 0 && len(national) != plan.NationalLength {
		return phone
	}
	if plan.CountryCode == "1" && len(national) == 10 {
		return "+1 (" + national[:3] + ") " + national[3:6] + "-" + national[6:]
	}
	var b strings.Builder
	b.WriteString("+" + plan.CountryCode)
	for i := 0; i < len(national); i += 3 {
		end := min(i+3, len(national))
		b.WriteByte(' ')
		b.WriteString(national[i:end])
	}
	return b.String()
}

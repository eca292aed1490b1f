package contact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"primedetail.kg/detail-web/internal/booking"
)

var (
	kg = booking.PhoneFormat{CountryCode: "996", TrunkPrefix: "0", NationalLength: 9}
	us = booking.PhoneFormat{CountryCode: "1", NationalLength: 10}
)

func TestTelURL(t *testing.T) {
	require.Equal(t, "tel:+996555123456", TelURL("+996 (555) 12-34-56"))
	require.Empty(t, TelURL("call us"))
}

func TestWhatsAppURL(t *testing.T) {
	require.Equal(t, "https://wa.me/996555123456", WhatsAppURL("+996555123456", ""))
	require.Equal(t, "https://wa.me/15551234567?text=Hi+there%21", WhatsAppURL("+1 555 123 4567", " Hi there! "))
}

func TestTelegramURL(t *testing.T) {
	for _, in := range []string{"primedetail_kg", "@primedetail_kg", "t.me/primedetail_kg", "https://t.me/primedetail_kg"} {
		require.Equal(t, "https://t.me/primedetail_kg", TelegramURL(in), in)
	}
	require.Empty(t, TelegramURL("  "))
}

func TestMailtoURL(t *testing.T) {
	require.Equal(t, "mailto:info@primedetail.kg", MailtoURL("info@primedetail.kg", ""))
	require.Equal(t, "mailto:privacy@shineport.us?subject=Privacy%20request", MailtoURL("privacy@shineport.us", "Privacy request"))
}

func TestDisplayPhone(t *testing.T) {
	require.Equal(t, "+996 555 123 456", DisplayPhone("0555123456", kg))
	require.Equal(t, "+996 555 123 456", DisplayPhone("+996555123456", kg))
	require.Equal(t, "+1 (555) 123-4567", DisplayPhone("555-123-4567", us))
	require.Equal(t, "12", DisplayPhone("12", kg))
}

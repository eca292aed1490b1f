package brand

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadShippedVariants(t *testing.T) {
	reg, err := Load("../../content/brands", "ru")
	require.NoError(t, err)

	ru := reg.ForLocale("ru")
	require.Equal(t, "primedetail", ru.ID)
	require.Equal(t, "Prime Detail", ru.Name)
	require.Equal(t, "996", ru.PhonePlan.CountryCode)
	require.NotEmpty(t, ru.Contacts.Phone)

	en := reg.ForLocale("EN")
	require.Equal(t, "shineport", en.ID)
	require.Equal(t, "1", en.PhonePlan.CountryCode)

	require.Equal(t, ru.ID, reg.ForLocale("de").ID)
	require.Len(t, reg.All(), 2)
}

func TestNewRegistryRejectsDuplicateLocale(t *testing.T) {
	_, err := NewRegistry("ru", Variant{ID: "a", Locale: "ru"}, Variant{ID: "b", Locale: "ru"})
	require.Error(t, err)
}

func TestNewRegistryRequiresFallback(t *testing.T) {
	_, err := NewRegistry("ru", Variant{ID: "a", Locale: "en"})
	require.Error(t, err)

	_, err = NewRegistry("ru")
	require.ErrorIs(t, err, ErrNoVariants)
}

func TestVariantURL(t *testing.T) {
	v := Variant{BaseURL: "https://primedetail.kg/"}
	require.Equal(t, "https://primedetail.kg/", v.URL("/"))
	require.Equal(t, "https://primedetail.kg/policy", v.URL("/policy"))
}

func TestSocialLinksSkipsEmpty(t *testing.T) {
	s := Social{Instagram: "https://instagram.com/x", Telegram: "https://t.me/x"}
	require.Equal(t, []string{"https://instagram.com/x", "https://t.me/x"}, s.Links())
}

// Package handlers holds the view models the templates render.
package handlers

import (
	"time"

	"primedetail.kg/detail-web/internal/brand"
	"primedetail.kg/detail-web/internal/contact"
	"primedetail.kg/detail-web/internal/nav"
	"primedetail.kg/detail-web/internal/seo"
)

// Layout carries the fields every page shares with the base template.
type Layout struct {
	Lang      string
	Brand     brand.Variant
	Head      *seo.Head
	Analytics Analytics
	CSRFToken string

	Path        string
	Nav         []nav.RenderedItem
	Breadcrumbs []nav.Crumb
	BookingHref string
	Locales     []LocaleLink
	Contacts    ContactLinks
	Year        int
}

// LocaleLink switches the site language.
type LocaleLink struct {
	Code   string
	Href   string
	Active bool
}

// ContactLinks are the prebuilt deep links for the brand contacts.
type ContactLinks struct {
	DisplayPhone string
	Tel          string
	WhatsApp     string
	Telegram     string
	Mailto       string
}

// BuildContactLinks derives deep links from the variant contacts. whatsappText
// prefills the chat.
func BuildContactLinks(v brand.Variant, whatsappText string) ContactLinks {
	whatsapp := v.Contacts.WhatsApp
	if whatsapp == "" {
		whatsapp = v.Contacts.Phone
	}
	return ContactLinks{
		DisplayPhone: contact.DisplayPhone(v.Contacts.Phone, v.PhonePlan),
		Tel:          contact.TelURL(v.PhonePlan.Normalize(v.Contacts.Phone)),
		WhatsApp:     contact.WhatsAppURL(v.PhonePlan.Normalize(whatsapp), whatsappText),
		Telegram:     contact.TelegramURL(v.Contacts.Telegram),
		Mailto:       contact.MailtoURL(v.Contacts.Email, ""),
	}
}

// BuildLayout fills the shared fields for path.
func BuildLayout(lang, path string, v brand.Variant, head *seo.Head, locales []string) Layout {
	links := make([]LocaleLink, 0, len(locales))
	for _, l := range locales {
		links = append(links, LocaleLink{Code: l, Href: path + "?lang=" + l, Active: l == lang})
	}
	return Layout{
		Lang:        lang,
		Brand:       v,
		Head:        head,
		Path:        path,
		Nav:         nav.Build(path),
		Breadcrumbs: nav.Breadcrumbs(path),
		BookingHref: nav.BookingHref(path),
		Locales:     links,
		Year:        time.Now().Year(),
	}
}

package dispatch

import (
	"strings"

	"primedetail.kg/detail-web/internal/booking"
)

// Labels localizes the chat notification.
type Labels struct {
	Heading string
	Name    string
	Phone   string
	Car     string
	Service string
	Package string
	Date    string
	Time    string
	Comment string
}

// DefaultLabels is used when a lead carries no labels of its own.
var DefaultLabels = Labels{
	Heading: "New Detailing Request",
	Name:    "Name",
	Phone:   "Phone",
	Car:     "Car",
	Service: "Service",
	Package: "Package",
	Date:    "Date",
	Time:    "Time",
	Comment: "Comment",
}

// escapeHTML escapes what Telegram's HTML parse mode treats as markup. User text is
// kept verbatim otherwise.
var escapeHTML = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace

// FormatMessage renders the multi-line chat notification. Only present fields get a line.
func FormatMessage(req booking.Request, labels Labels) string {
	if labels == (Labels{}) {
		labels = DefaultLabels
	}
	var b strings.Builder
	b.WriteString("🚗 ")
	b.WriteString(labels.Heading)
	b.WriteString("\n")

	line := func(emoji, label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(emoji)
		b.WriteString(" ")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(escapeHTML(value))
	}
	line("👤", labels.Name, req.Name)
	line("📞", labels.Phone, req.Phone)
	line("🚙", labels.Car, req.CarModel)
	line("🔧", labels.Service, req.Service)
	line("📦", labels.Package, req.Package)
	line("📅", labels.Date, req.PreferredDate)
	line("⏰", labels.Time, req.PreferredTime)
	line("💬", labels.Comment, req.Comment)
	return b.String()
}

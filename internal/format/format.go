package format

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency describes how a brand prints prices.
type Currency struct {
	Symbol string `yaml:"symbol"`
	Prefix bool   `yaml:"prefix"`
}

// Number groups digits the way lang expects, e.g. "12 000" for ru and "12,000" for en.
func Number(n int64, lang string) string {
	return printer(lang).Sprintf("%d", n)
}

// Price renders a starting price: "от 12 000 сом" or "from $120".
func Price(amount int64, c Currency, lang string) string {
	num := Number(amount, lang)
	var value string
	switch {
	case c.Symbol == "":
		value = num
	case c.Prefix:
		value = c.Symbol + num
	default:
		value = num + " " + c.Symbol
	}
	return fromWord(lang) + " " + value
}

// Duration renders service length in hours with Russian plural forms for ru.
func Duration(hours float64, lang string) string {
	if hours <= 0 {
		return ""
	}
	ru := isRussian(lang)
	if hours < 1 {
		mins := strconv.Itoa(int(math.Round(hours * 60)))
		if ru {
			return mins + " мин"
		}
		return mins + " min"
	}
	h := strconv.FormatFloat(hours, 'f', -1, 64)
	if ru {
		switch {
		case hours == 1:
			return "1 час"
		case hours < 5:
			return h + " часа"
		default:
			return h + " часов"
		}
	}
	if hours == 1 {
		return "1 hour"
	}
	return h + " hours"
}

// Stars renders a 0..5 rating as filled and empty stars.
func Stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func fromWord(lang string) string {
	if isRussian(lang) {
		return "от"
	}
	return "from"
}

func isRussian(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "ru")
}

func printer(lang string) *message.Printer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

package extractor

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrNoPrice = errors.New("no price in text")

// ParsePrice приводит строку цены к десятичному значению.
// Понимает "14,34 €", "14.34", "1 234,56", "1.234,56", "1,234.56", "£1,299" и "99,".
func ParsePrice(text string) (decimal.Decimal, error) {
	var b strings.Builder
	started := false
scan:
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			started = true
		case (r == ',' || r == '.') && started:
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '\'':
			// разделители тысяч, включая неразрывные пробелы
		case started:
			// цена закончилась, дальше валюта или текст
			break scan
		}
	}
	raw := strings.TrimRight(b.String(), ".,")
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNoPrice, text)
	}

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")

	var normalized string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// десятичный разделитель - тот, что правее
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(raw, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(raw, ",", "")
		}
	case lastComma >= 0:
		normalized = singleSeparator(raw, ",")
	case lastDot >= 0:
		normalized = singleSeparator(raw, ".")
	default:
		normalized = raw
	}

	price, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", text, err)
	}
	return price, nil
}

// singleSeparator разбирает строку с одним видом разделителя.
// Несколько вхождений - разделители тысяч. Одно вхождение с ровно тремя цифрами после
// и ненулевой целой частью до трех цифр ("£1,299", "1.299") - тоже разделитель тысяч,
// иначе это десятичный разделитель ("14,34", "0,125").
func singleSeparator(raw, sep string) string {
	if strings.Count(raw, sep) > 1 {
		return strings.ReplaceAll(raw, sep, "")
	}
	whole, fraction, _ := strings.Cut(raw, sep)
	if len(fraction) == 3 && len(whole) <= 3 && whole != "" && whole[0] != '0' {
		return whole + fraction
	}
	return whole + "." + fraction
}

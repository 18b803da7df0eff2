package printing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Text
// =============================================================================

// normalizeText composes Thai and Latin text to NFC so combining marks from
// different upstream systems compare and render the same way.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// titleCase converts string to title case using proper Unicode handling.
// Thai script has no case and passes through unchanged.
func titleCase(s string) string {
	caser := cases.Title(language.English)
	return caser.String(strings.ToLower(s))
}

// =============================================================================
// Money
// =============================================================================

// formatMoney formats a decimal value with thousand separators and two decimals
// Example: 1234.5 -> "1,234.50"
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	parts := strings.Split(d.StringFixed(2), ".")
	intPart := parts[0]
	decPart := "00"
	if len(parts) > 1 {
		decPart = parts[1]
	}

	var result strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	return sign + result.String() + "." + decPart
}

// formatPercent formats a rate given in percent
// Example: 7 -> "7%", 1.5 -> "1.5%"
func formatPercent(d decimal.Decimal) string {
	return d.String() + "%"
}

// maxSpelledAmount is the largest amount the word forms can express
var maxSpelledAmount = decimal.RequireFromString("999999999999999.99")

// splitAmount rounds to two places and splits into whole units and
// hundredths. ok is false when the amount exceeds maxSpelledAmount.
func splitAmount(d decimal.Decimal) (units, hundredths int64, negative, ok bool) {
	d = d.Round(2)
	negative = d.IsNegative()
	d = d.Abs()
	if d.GreaterThan(maxSpelledAmount) {
		return 0, 0, negative, false
	}
	cents := d.Shift(2).IntPart()
	return cents / 100, cents % 100, negative, true
}

var (
	thaiDigits = []string{"ศูนย์", "หนึ่ง", "สอง", "สาม", "สี่", "ห้า", "หก", "เจ็ด", "แปด", "เก้า"}
	thaiUnits  = []string{"", "สิบ", "ร้อย", "พัน", "หมื่น", "แสน"}
)

// bahtText spells an amount the way Thai tax invoices print it. Amounts past
// maxSpelledAmount yield "".
// Example: 1234.56 -> "หนึ่งพันสองร้อยสามสิบสี่บาทห้าสิบหกสตางค์"
func bahtText(d decimal.Decimal) string {
	baht, satang, negative, ok := splitAmount(d)
	if !ok {
		return ""
	}
	if baht == 0 && satang == 0 {
		return "ศูนย์บาทถ้วน"
	}

	var b strings.Builder
	if negative {
		b.WriteString("ลบ")
	}
	if baht > 0 {
		b.WriteString(thaiNumber(baht))
		b.WriteString("บาท")
	}
	if satang == 0 {
		b.WriteString("ถ้วน")
	} else {
		b.WriteString(thaiGroup(satang, false))
		b.WriteString("สตางค์")
	}
	return b.String()
}

// thaiNumber reads a positive integer; ล้าน repeats for every six digits
func thaiNumber(n int64) string {
	if n == 0 {
		return ""
	}
	millions, rest := n/1_000_000, n%1_000_000
	if millions == 0 {
		return thaiGroup(rest, false)
	}
	return thaiNumber(millions) + "ล้าน" + thaiGroup(rest, true)
}

// thaiGroup reads 0..999999. A trailing one is read เอ็ด unless it stands alone.
func thaiGroup(n int64, hasHigher bool) string {
	var b strings.Builder
	for pos := 5; pos >= 0; pos-- {
		div := int64(1)
		for i := 0; i < pos; i++ {
			div *= 10
		}
		digit := (n / div) % 10
		if digit == 0 {
			continue
		}
		switch {
		case pos == 1 && digit == 1:
			b.WriteString("สิบ")
		case pos == 1 && digit == 2:
			b.WriteString("ยี่สิบ")
		case pos == 0 && digit == 1 && (n > 1 || hasHigher):
			b.WriteString("เอ็ด")
		default:
			b.WriteString(thaiDigits[digit])
			b.WriteString(thaiUnits[pos])
		}
	}
	return b.String()
}

var (
	englishOnes = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	englishTens   = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
	englishScales = []string{"", "Thousand", "Million", "Billion", "Trillion"}
)

// amountInWords spells an amount in English for the given currency.
// Amounts past maxSpelledAmount yield "".
// Example: 1234.56 THB -> "One Thousand Two Hundred Thirty-Four Baht and Fifty-Six Satang Only"
func amountInWords(d decimal.Decimal, currency string) string {
	units, hundredths, negative, ok := splitAmount(d)
	if !ok {
		return ""
	}

	var b strings.Builder
	if negative {
		b.WriteString("Minus ")
	}
	words := englishNumber(units)
	if words == "" {
		words = "Zero"
	}
	b.WriteString(words)

	if currency == "THB" {
		b.WriteString(" Baht")
		if hundredths > 0 {
			b.WriteString(" and ")
			b.WriteString(englishNumber(hundredths))
			b.WriteString(" Satang")
		}
	} else {
		b.WriteString(" ")
		b.WriteString(currency)
		if hundredths > 0 {
			fmt.Fprintf(&b, " and %02d/100", hundredths)
		}
	}
	b.WriteString(" Only")
	return b.String()
}

func englishNumber(n int64) string {
	if n == 0 {
		return ""
	}
	var groups []string
	for scale := 0; n > 0 && scale < len(englishScales); scale++ {
		chunk := n % 1000
		n /= 1000
		if chunk == 0 {
			continue
		}
		words := englishHundreds(chunk)
		if englishScales[scale] != "" {
			words += " " + englishScales[scale]
		}
		groups = append([]string{words}, groups...)
	}
	return strings.Join(groups, " ")
}

func englishHundreds(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, englishOnes[n/100]+" Hundred")
		n %= 100
	}
	switch {
	case n >= 20:
		word := englishTens[n/10]
		if n%10 != 0 {
			word += "-" + englishOnes[n%10]
		}
		parts = append(parts, word)
	case n > 0:
		parts = append(parts, englishOnes[n])
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Dates
// =============================================================================

var thaiMonths = []string{"", "มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม"}

// formatDate formats a date as day/month/year
// Example: 2024-01-15 -> "15/01/2024"
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// formatThaiDate formats a date with the Thai month name and Buddhist Era year
// Example: 2024-01-15 -> "15 มกราคม 2567"
func formatThaiDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), thaiMonths[t.Month()], t.Year()+543)
}

// formatDateTime formats a timestamp for flight segments
// Example: "15/01/2024 14:30"
func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}

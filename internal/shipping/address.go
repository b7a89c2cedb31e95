package shipping

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	domesticCountry        = "PL"
	fallbackBuildingNumber = "1"
)

var (
	trailingPostCode = regexp.MustCompile(`[\s,]*\d{2}-?\d{3}\s*$`)
	trailingNumber   = regexp.MustCompile(`^(.*?)[\s,]+(\d+[A-Za-z]?(?:[/\-]\d+[A-Za-z]?)?)$`)
)

// Local-language and English names that all mean the domestic country.
var domesticCountryNames = map[string]struct{}{
	"pl":     {},
	"pol":    {},
	"polska": {},
	"poland": {},
	"polen":  {},
}

// splitStreet derives street and building number from a free-text address line.
// Only the part before the first comma is considered.
func splitStreet(address string) (street, building string) {
	line := strings.TrimSpace(address)
	if idx := strings.Index(line, ","); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	line = strings.TrimSpace(trailingPostCode.ReplaceAllString(line, ""))

	if m := trailingNumber.FindStringSubmatch(line); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1]), m[2]
	}
	return line, fallbackBuildingNumber
}

func normalizeCountry(country string) string {
	c := strings.ToLower(strings.TrimSpace(country))
	if c == "" {
		return domesticCountry
	}
	if _, ok := domesticCountryNames[c]; ok {
		return domesticCountry
	}
	if len(c) == 2 {
		return strings.ToUpper(c)
	}
	return domesticCountry
}

// normalizePhone keeps digits only and drops the domestic dialing prefix.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && strings.HasPrefix(digits, "48") {
		digits = digits[2:]
	}
	return digits
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func normalizePostCode(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 5 && isDigits(code) {
		return code[:2] + "-" + code[2:]
	}
	return code
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

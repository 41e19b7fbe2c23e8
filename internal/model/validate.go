package model

import (
	"regexp"
	"strings"
	"unicode"
)

// NRCGrammar selects the accepted spelling of a national registration card number.
type NRCGrammar int

const (
	// NRCCanonical is the Latin form, e.g. 12/LAMANA(N)123456.
	NRCCanonical NRCGrammar = iota
	// NRCBurmese also accepts Myanmar digits and letters and a township code
	// of three to six letters.
	NRCBurmese
)

var (
	nrcCanonical = regexp.MustCompile(`^(1[0-4]|[1-9])/([A-Z]{6})\(([A-Z])\)([0-9]{6})$`)
	nrcBurmese   = regexp.MustCompile(`^(1[0-4]|[1-9]|၁[၀-၄]|[၁-၉])/([A-Z\x{1000}-\x{1021}]{3,6})\(([A-Z\x{1000}-\x{1021}])\)([0-9၀-၉]{6})$`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^09\d{9}$`),
		regexp.MustCompile(`^\+959\d{8}$`),
		regexp.MustCompile(`^959\d{8}$`),
	}
)

// NRCFormat is the human-readable shape shown next to NRC errors.
const NRCFormat = "1-14/XXXXXX(X)000000"

// ValidNRC reports whether s is a canonical NRC number. Input is upper-cased.
func ValidNRC(s string) bool {
	return ValidNRCWith(NRCCanonical, s)
}

// ValidNRCWith checks s against the given grammar.
func ValidNRCWith(g NRCGrammar, s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if g == NRCBurmese {
		return nrcBurmese.MatchString(s)
	}
	return nrcCanonical.MatchString(s)
}

// ValidPhone reports whether s is a Myanmar mobile number: 09 followed by
// nine digits, or the international form with or without a leading plus.
// Whitespace is ignored.
func ValidPhone(s string) bool {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	for _, p := range phonePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

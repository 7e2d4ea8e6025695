package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// moneyNoise matches every rune that cannot take part in a number.
var moneyNoise = regexp.MustCompile(`[^0-9,.\-]`)

// ParseMoney converts console currency text into a number.
//
// The console renders amounts in the Latin American convention, so the
// separators are read as follows:
//
//	"$1.234,56" -> 1234.56  (period groups thousands, comma is decimal)
//	"$1,5"      -> 1.5      (lone comma is decimal)
//	"$1,234"    -> 1.234    (lone comma is still decimal, see DESIGN.md)
//	"$500"      -> 500
//	"", "n/a"   -> 0
//
// It never fails: anything unparseable, NaN or infinite yields 0.
func ParseMoney(text string) float64 {
	if text == "" {
		return 0
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	core := moneyNoise.ReplaceAllString(cleaned, "")
	if core == "" {
		return 0
	}

	hasComma := strings.Contains(core, ",")
	hasPeriod := strings.Contains(core, ".")
	switch {
	case hasComma && hasPeriod:
		core = strings.ReplaceAll(core, ".", "")
		core = strings.Replace(core, ",", ".", 1)
	case hasComma:
		core = strings.Replace(core, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(core, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

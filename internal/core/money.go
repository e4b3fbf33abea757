// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user and
// spreadsheet input and formatting them back for exports.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount converts a human formatted number into a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, thousands
// separators in either convention and a currency unit before or after the
// number. When both separators appear, the last one is the decimal
// separator. A single separator followed by exactly three digits groups
// thousands, unless the integer part is 0.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("12,34")     -> 12.34
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("1,234.56")  -> 1234.56
//	ParseAmount("1,234")     -> 1234
//	ParseAmount("0,125")     -> 0.125
//	ParseAmount("R$ 1.000")  -> 1000
//	ParseAmount("12abc34")   -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s, neg := stripUnit(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" || strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ','
	}) >= 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	var whole, frac string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		sep := max(lastDot, lastComma)
		whole, frac = s[:sep], s[sep+1:]
	case lastDot >= 0 || lastComma >= 0:
		sep := max(lastDot, lastComma)
		whole, frac = s[:sep], s[sep+1:]
		grouping := len(frac) == 3 && len(whole) >= 1 && len(whole) <= 3 && whole[0] != '0'
		if strings.Count(s, s[sep:sep+1]) > 1 || grouping {
			whole, frac = s, ""
		}
	default:
		whole = s
	}
	whole, ok := ungroup(whole)
	if !ok || whole == "" && frac == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	num := whole
	if frac != "" {
		num += "." + frac
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// stripUnit trims spaces, the sign and a currency unit ("R$", "€", "EUR")
// written before or after the number.
func stripUnit(s string) (string, bool) {
	isUnit := func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
	}
	neg := false
	sign := func() {
		if strings.HasPrefix(s, "-") {
			neg = true
			s = s[1:]
		} else if strings.HasPrefix(s, "+") {
			s = s[1:]
		}
	}
	s = strings.TrimSpace(s)
	sign()
	s = strings.TrimLeftFunc(s, isUnit)
	if !neg {
		sign()
	}
	return strings.TrimRightFunc(s, isUnit), neg
}

// ungroup drops thousands separators from an integer part, requiring one
// separator kind and groups of three digits after the first.
func ungroup(whole string) (string, bool) {
	if !strings.ContainsAny(whole, ".,") {
		return whole, true
	}
	if strings.Contains(whole, ".") && strings.Contains(whole, ",") {
		return "", false
	}
	groups := strings.Split(strings.ReplaceAll(whole, ",", "."), ".")
	if len(groups[0]) < 1 || len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

// FormatAmount renders a decimal with two fixed decimals, e.g. "1234.50".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// DecimalPtr is a small helper for optional adjustments.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

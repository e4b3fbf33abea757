package importer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrTooFewColumns   = errors.New("not enough columns")
	ErrUnmappedTarget  = errors.New("required field not mapped")
	ErrUnknownTarget   = errors.New("unknown field")
	ErrUnknownHeader   = errors.New("column not found in file")
	ErrDuplicateHeader = errors.New("column mapped more than once")
)

// Mapping associates target keys with source headers.
type Mapping map[string]string

// normalize folds case and accents and drops everything but letters and
// digits, so "Data de Vencimento" and "data_vencimento" compare equal.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AutoMap suggests a mapping. Headers are matched by normalised name against
// each target's key, label and aliases, first exactly and then by
// containment ("Valor (R$)" holds "valor"). Required targets still
// unmatched are filled positionally with the header at the same index, when
// it is free.
func AutoMap(headers []string, targets []Target) Mapping {
	m := Mapping{}
	used := make([]bool, len(headers))
	norms := make([]string, len(headers))
	for i, h := range headers {
		norms[i] = normalize(h)
	}

	for _, match := range []func(header, name string) bool{
		func(h, n string) bool { return h == n },
		func(h, n string) bool { return len(n) >= 4 && strings.Contains(h, n) },
	} {
		for _, t := range targets {
			if _, ok := m[t.Key]; ok {
				continue
			}
			names := append([]string{t.Key, t.Label}, t.Aliases...)
			for _, name := range names {
				if i := indexOf(norms, used, normalize(name), match); i >= 0 {
					m[t.Key] = headers[i]
					used[i] = true
					break
				}
			}
		}
	}

	for i, t := range targets {
		if !t.Required {
			continue
		}
		if _, ok := m[t.Key]; ok {
			continue
		}
		if i < len(headers) && !used[i] && norms[i] != "" {
			m[t.Key] = headers[i]
			used[i] = true
		}
	}
	return m
}

func indexOf(norms []string, used []bool, n string, match func(header, name string) bool) int {
	if n == "" {
		return -1
	}
	for i, h := range norms {
		if !used[i] && match(h, n) {
			return i
		}
	}
	return -1
}

// Validate checks that m is usable with the given headers.
func (m Mapping) Validate(headers []string, targets []Target) error {
	if need := requiredCount(targets); len(headers) < need {
		return fmt.Errorf("%w: file has %d columns but %d fields are required", ErrTooFewColumns, len(headers), need)
	}

	known := make(map[string]bool, len(targets))
	for _, t := range targets {
		known[t.Key] = true
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	var errs []error
	for _, t := range targets {
		if t.Required && m[t.Key] == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnmappedTarget, t.Label))
		}
	}
	seen := map[string]string{}
	for _, t := range targets {
		h, ok := m[t.Key]
		if !ok || h == "" {
			continue
		}
		if !present[h] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownHeader, h))
		}
		if prev, dup := seen[h]; dup {
			errs = append(errs, fmt.Errorf("%w: %q for %s and %s", ErrDuplicateHeader, h, prev, t.Key))
		}
		seen[h] = t.Key
	}
	for key := range m {
		if !known[key] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownTarget, key))
		}
	}
	return errors.Join(errs...)
}

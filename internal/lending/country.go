package lending

import "strings"

// Country is a market the catalog serves.
type Country string

const (
	CountryUS Country = "US"
	CountryCA Country = "CA"
)

// CountrySet is the set of markets a product or profile covers.
type CountrySet uint8

const (
	countryUS CountrySet = 1 << iota
	countryCA

	countryBoth = countryUS | countryCA
)

var countryAliases = map[string]CountrySet{
	"us":                       countryUS,
	"usa":                      countryUS,
	"u.s.":                     countryUS,
	"u.s.a.":                   countryUS,
	"united states":            countryUS,
	"united-states":            countryUS,
	"united_states":            countryUS,
	"united states of america": countryUS,
	"america":                  countryUS,

	"ca":     countryCA,
	"can":    countryCA,
	"canada": countryCA,

	"both":          countryBoth,
	"north america": countryBoth,
	"north-america": countryBoth,
	"north_america": countryBoth,
}

// ParseCountry normalizes a free-text country or region. Combined tokens
// such as "US/CA", "US-CA", "USA, Canada" or "US and Canada" yield both
// markets; anything unknown yields the empty set.
func ParseCountry(raw string) CountrySet {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	if set, ok := countryAliases[s]; ok {
		return set
	}

	s = strings.ReplaceAll(s, " and ", ",")
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == ',' || r == '&' || r == '|' || r == '+'
	})

	var set CountrySet
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if known, ok := countryAliases[part]; ok {
			set |= known
			continue
		}
		// "us-ca": hyphens only split once the whole token is not an alias
		if sub := strings.Split(part, "-"); len(sub) > 1 {
			for _, token := range sub {
				set |= countryAliases[strings.TrimSpace(token)]
			}
		}
	}
	return set
}

// Contains reports whether the set covers a country.
func (s CountrySet) Contains(c Country) bool {
	switch c {
	case CountryUS:
		return s&countryUS != 0
	case CountryCA:
		return s&countryCA != 0
	}
	return false
}

// Overlaps reports whether two sets share at least one market.
func (s CountrySet) Overlaps(other CountrySet) bool {
	return s&other != 0
}

// Empty reports whether nothing was recognized.
func (s CountrySet) Empty() bool {
	return s == 0
}

func (s CountrySet) String() string {
	switch s {
	case countryUS:
		return string(CountryUS)
	case countryCA:
		return string(CountryCA)
	case countryBoth:
		return "US/CA"
	}
	return ""
}

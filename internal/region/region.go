// Package region defines the canonical region identifier used at every
// boundary of the pipeline. Upstream APIs variously identify a state by
// postal code or by full name; both are translated to a Code at ingestion
// and only Codes flow through classification and aggregation.
package region

import (
	"fmt"
	"sort"
	"strings"
)

// Code is a canonical two-letter postal code, e.g. "HI".
type Code string

// names maps every known code to its full name.
var names = map[Code]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
}

// byName is the inverse lookup, lowercased full name to code.
var byName = func() map[string]Code {
	m := make(map[string]Code, len(names))
	for code, name := range names {
		m[strings.ToLower(name)] = code
	}
	return m
}()

// Parse normalizes an upstream region identifier, accepting either a postal
// code ("HI", case-insensitive) or a full name ("Hawaii").
func Parse(s string) (Code, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("empty region identifier")
	}
	if len(trimmed) == 2 {
		code := Code(strings.ToUpper(trimmed))
		if _, ok := names[code]; ok {
			return code, nil
		}
		return "", fmt.Errorf("unknown region code %q", s)
	}
	if code, ok := byName[strings.ToLower(trimmed)]; ok {
		return code, nil
	}
	return "", fmt.Errorf("unknown region name %q", s)
}

// Name returns the full name for a code, or the code itself if unknown.
func (c Code) Name() string {
	if name, ok := names[c]; ok {
		return name
	}
	return string(c)
}

// Valid reports whether the code is a known jurisdiction.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}

// States returns the 50 state codes, sorted. DC is a known jurisdiction but
// not a state, so it is never in this list; callers that want it in raw
// observations must add it explicitly.
func States() []Code {
	codes := make([]Code, 0, len(names)-1)
	for code := range names {
		if code == "DC" {
			continue
		}
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Package classify partitions upstream category codes into semantic groups
// using the free-text descriptions attached to each observation. Upstream
// code sets are not stable across releases, so membership is inferred per
// run from the descriptions actually seen, never from a fixed enumeration.
package classify

import (
	"sort"
	"strings"

	"github.com/kaimana-labs/statebench/internal/model"
)

// Descriptor is the case-folded union of every description string observed
// for one category code across all fetched rows.
type Descriptor struct {
	Code         string
	Descriptions []string
}

// joined returns all descriptions as one search string.
func (d Descriptor) joined() string {
	return strings.Join(d.Descriptions, " ")
}

// Result is the frozen three-way partition of observed codes. The sets are
// pairwise disjoint; a code in none of them counts toward the denominator
// but never the numerator.
type Result struct {
	Member                  map[string]bool
	ExcludedFromDenominator map[string]bool
	ExcludedEverywhere      map[string]bool
}

// IsMember reports whether code contributes to the numerator.
func (r Result) IsMember(code string) bool {
	return r.Member[code]
}

// InDenominator reports whether code contributes to the denominator.
func (r Result) InDenominator(code string) bool {
	return !r.ExcludedEverywhere[code] && !r.ExcludedFromDenominator[code]
}

// MemberCodes returns the member set sorted, for logging and probe output.
func (r Result) MemberCodes() []string {
	return sortedKeys(r.Member)
}

// ExcludedCodes returns the two exclusion sets sorted.
func (r Result) ExcludedCodes() (fromDenominator, everywhere []string) {
	return sortedKeys(r.ExcludedFromDenominator), sortedKeys(r.ExcludedEverywhere)
}

// Classifier evaluates a RuleSet over a full observation set. It holds no
// per-run state; the same classifier may serve many metrics.
type Classifier struct {
	rules RuleSet
}

// NewClassifier creates a classifier for the given rules.
func NewClassifier(rules RuleSet) (*Classifier, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{rules: rules}, nil
}

// BuildDescriptors unions every description seen for each code, case-folded.
// A code may carry multiple textual variants across pages or regions; the
// union keeps classification consistent no matter which variant a region
// happened to return.
func BuildDescriptors(observations []model.Observation) []Descriptor {
	byCode := make(map[string]map[string]bool)
	for _, obs := range observations {
		code := strings.ToUpper(strings.TrimSpace(obs.CategoryCode))
		if code == "" {
			continue
		}
		desc := strings.ToLower(strings.TrimSpace(obs.Description))
		if byCode[code] == nil {
			byCode[code] = make(map[string]bool)
		}
		if desc != "" {
			byCode[code][desc] = true
		}
	}

	descriptors := make([]Descriptor, 0, len(byCode))
	for code, set := range byCode {
		descriptors = append(descriptors, Descriptor{
			Code:         code,
			Descriptions: sortedKeys(set),
		})
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Code < descriptors[j].Code })
	return descriptors
}

// Classify partitions the codes observed in the input. Empty input yields
// three empty sets, which is a valid result: downstream aggregation then
// produces all-nil shares rather than an error.
//
// Rule precedence, first match wins:
//  1. aggregate/total marker        -> excluded everywhere
//  2. out-of-scope marker or code   -> excluded everywhere
//  3. storage marker                -> excluded from denominator
//  4. positive keyword, no negative -> member
//  5. otherwise                     -> unclassified (denominator only)
//
// A final pass demotes parent aggregates whose specific sub-codes are
// already members, so a family never counts twice.
func (c *Classifier) Classify(observations []model.Observation) Result {
	result := Result{
		Member:                  make(map[string]bool),
		ExcludedFromDenominator: make(map[string]bool),
		ExcludedEverywhere:      make(map[string]bool),
	}

	outOfScope := make(map[string]bool, len(c.rules.OutOfScopeCodes))
	for _, code := range c.rules.OutOfScopeCodes {
		outOfScope[strings.ToUpper(code)] = true
	}

	for _, d := range BuildDescriptors(observations) {
		text := d.joined()

		switch {
		case containsAny(text, c.rules.AggregateMarkers):
			result.ExcludedEverywhere[d.Code] = true
		case outOfScope[d.Code] || containsAny(text, c.rules.OutOfScopeMarkers):
			result.ExcludedEverywhere[d.Code] = true
		case containsAny(text, c.rules.StorageMarkers):
			result.ExcludedFromDenominator[d.Code] = true
		case containsAny(text, c.rules.Positive) && !containsAny(text, c.rules.Negative):
			result.Member[d.Code] = true
		}
	}

	// Prefer specific sub-codes over their parent aggregate.
	for _, family := range c.rules.Families {
		parent := strings.ToUpper(family.Parent)
		if !result.Member[parent] {
			continue
		}
		for _, child := range family.Children {
			if result.Member[strings.ToUpper(child)] {
				delete(result.Member, parent)
				result.ExcludedEverywhere[parent] = true
				break
			}
		}
	}

	return result
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Family names a parent aggregate code and the specific sub-codes that
// duplicate it. When a parent and at least one child both classify as
// members, the parent is demoted to excluded-everywhere.
type Family struct {
	Parent   string   `yaml:"parent"`
	Children []string `yaml:"children"`
}

// RuleSet is the versioned keyword configuration driving classification.
// Keywords are matched as case-folded substrings of the union of all
// descriptions observed for a code. The lists are data, not logic: tuning
// them must never require touching the aggregation algorithm.
type RuleSet struct {
	Version int `yaml:"version"`

	// AggregateMarkers flag a code as an aggregate/total that would
	// double-count its constituents.
	AggregateMarkers []string `yaml:"aggregate_markers"`

	// OutOfScopeMarkers flag distributed / behind-the-meter sub-categories
	// outside the reporting scope.
	OutOfScopeMarkers []string `yaml:"out_of_scope_markers"`

	// OutOfScopeCodes are codes excluded everywhere regardless of
	// description, e.g. DPV (distributed photovoltaic).
	OutOfScopeCodes []string `yaml:"out_of_scope_codes"`

	// StorageMarkers flag storage activity (pumped storage) that must not
	// count toward either side of the ratio.
	StorageMarkers []string `yaml:"storage_markers"`

	// Positive keywords admit a code into the measured group; Negative
	// keywords veto admission even when a positive keyword matches.
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`

	Families []Family `yaml:"families"`
}

// DefaultRuleSet returns the rule set for renewable electricity generation
// against EIA fuel-type codes.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version: 1,
		AggregateMarkers: []string{
			"total",
		},
		OutOfScopeMarkers: []string{
			"distributed",
			"behind-the-meter",
			"small-scale",
		},
		OutOfScopeCodes: []string{
			"DPV",
		},
		StorageMarkers: []string{
			"pumped",
		},
		Positive: []string{
			"solar",
			"photovoltaic",
			"pv",
			"wind",
			"hydro",
			"water",
			"geothermal",
			"biomass",
			"wood",
			"landfill",
			"municipal solid waste",
			"msw",
			"black liquor",
			"bagasse",
			"biogas",
			"waste wood",
		},
		Negative: []string{
			"coal",
			"natural gas",
			"petroleum",
			"oil",
			"diesel",
			"naphtha",
			"nuclear",
			"uranium",
		},
		Families: []Family{
			{Parent: "SUN", Children: []string{"SPV", "STH"}},
			{Parent: "WND", Children: []string{"WNT", "WNS"}},
			{Parent: "BIO", Children: []string{"WOO", "WWW", "WAS", "MLG", "MSB", "OBW", "OB2"}},
			{Parent: "HYC", Children: []string{"HYR"}},
		},
	}
}

// LoadRuleSet reads a rule set from a YAML file.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rule set: %w", err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rule set %s: %w", path, err)
	}

	if err := rules.Validate(); err != nil {
		return RuleSet{}, fmt.Errorf("invalid rule set %s: %w", path, err)
	}

	return rules, nil
}

// Validate checks that the rule set can make non-trivial decisions.
func (r RuleSet) Validate() error {
	if len(r.Positive) == 0 {
		return fmt.Errorf("rule set has no positive keywords")
	}
	for _, f := range r.Families {
		if f.Parent == "" {
			return fmt.Errorf("family with empty parent code")
		}
		if len(f.Children) == 0 {
			return fmt.Errorf("family %s has no children", f.Parent)
		}
	}
	return nil
}

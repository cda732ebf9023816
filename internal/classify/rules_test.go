package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuleSetIsValid(t *testing.T) {
	require.NoError(t, DefaultRuleSet().Validate())
}

func TestLoadRuleSet(t *testing.T) {
	content := `version: 2
aggregate_markers: ["total"]
out_of_scope_markers: ["distributed"]
out_of_scope_codes: ["DPV"]
storage_markers: ["pumped"]
positive: ["solar", "wind"]
negative: ["coal"]
families:
  - parent: SUN
    children: [SPV]
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err := LoadRuleSet(path)
	require.NoError(t, err)

	assert.Equal(t, 2, rules.Version)
	assert.Equal(t, []string{"solar", "wind"}, rules.Positive)
	require.Len(t, rules.Families, 1)
	assert.Equal(t, "SUN", rules.Families[0].Parent)
}

func TestLoadRuleSetErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "positive: [unclosed",
		},
		{
			name:    "no positive keywords",
			content: "version: 1\nnegative: [\"coal\"]\n",
		},
		{
			name:    "family without children",
			content: "positive: [\"solar\"]\nfamilies:\n  - parent: SUN\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadRuleSet(path)
			require.Error(t, err)
		})
	}
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	_, err := LoadRuleSet(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	rules := RuleSet{Positive: []string{"solar"}}
	assert.NoError(t, rules.Validate())

	rules.Families = []Family{{Parent: "", Children: []string{"SPV"}}}
	assert.Error(t, rules.Validate())
}

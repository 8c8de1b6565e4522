package simplify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule maps a legal phrase to plain language. Pattern is a regular
// expression matched case-insensitively; Replacement is inserted literally.
type Rule struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
}

var defaultRules = []Rule{
	{Pattern: "hereinafter", Replacement: "from now on"},
	{Pattern: "aforementioned", Replacement: "mentioned earlier"},
	{Pattern: "pursuant to", Replacement: "under"},
	{Pattern: "in the event that", Replacement: "if"},
	{Pattern: "notwithstanding", Replacement: "despite"},
	{Pattern: "commence", Replacement: "start"},
	{Pattern: "terminate", Replacement: "end"},
	{Pattern: "endeavor", Replacement: "try"},
	{Pattern: "shall", Replacement: "will"},
	{Pattern: "party of the first part", Replacement: "first party"},
	{Pattern: "party of the second part", Replacement: "second party"},
	{Pattern: "indemnify", Replacement: "protect from claims"},
	{Pattern: "warrant", Replacement: "promise"},
	{Pattern: "obligation", Replacement: "duty"},
	{Pattern: "liability", Replacement: "responsibility"},
	{Pattern: "utilize", Replacement: "use"},
}

// DefaultRules returns a fresh copy of the built-in rule list.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from a YAML file:
//
//	rules:
//	  - pattern: hereinafter
//	    replacement: from now on
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules decodes YAML rule content, preserving order.
func ParseRules(raw []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("decode rules: no rules defined")
	}
	for i, r := range f.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("decode rules: rule %d has empty pattern", i)
		}
	}
	return f.Rules, nil
}

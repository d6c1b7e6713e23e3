package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ruleflow/pkg/models"
)

// LoadSeedFile reads rules from a YAML document of the form
//
//	rules:
//	  - tenant_id: acme
//	    name: welcome
//	    module: crm
//	    ...
//
// Rules default to enabled unless the file says otherwise.
func LoadSeedFile(path string) ([]models.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) ([]models.Rule, error) {
	var doc SeedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	// A second pass tells an omitted enabled flag apart from an explicit false.
	var flags struct {
		Rules []struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &flags); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range doc.Rules {
		if flags.Rules[i].Enabled == nil {
			doc.Rules[i].Enabled = true
		}
	}
	return doc.Rules, nil
}

// Seed validates and stores rules. It stops at the first invalid rule and reports how many were
// stored before it.
func Seed(ctx context.Context, repo Repository, validator *Validator, rules []models.Rule) (int, error) {
	for i := range rules {
		rule := rules[i]
		if err := validator.ValidateRule(&rule); err != nil {
			return i, asAPIError(err).WithDetail("rule", rule.Name)
		}
		if err := repo.CreateRule(ctx, &rule); err != nil {
			return i, err
		}
	}
	return len(rules), nil
}

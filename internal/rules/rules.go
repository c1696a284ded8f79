// Package rules holds the static IVA rate and deductibility rule table the
// classifiers run against. The table is immutable after loading: a broken
// table is a fatal configuration error, there is no fallback rule set.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
)

// Deductibility category names. The classifier checks them in this order.
const (
	CategoryVehicle       = "partial_50"
	CategoryHome          = "partial_home"
	CategoryNonDeductible = "zero_0"
	CategoryProfessional  = "full_100"
)

// RateRule maps an ordered keyword list to one IVA tier.
type RateRule struct {
	Rate     int      `yaml:"rate"` // 0, 4, 10, 21
	Label    string   `yaml:"label"`
	Article  string   `yaml:"article"`
	Keywords []string `yaml:"keywords"`
}

// DeductRule maps an ordered keyword list to a deduction percentage. A rule
// may carry a named condition on the user profile ("works_from_home"); the
// keyword match alone is not sufficient for such rules.
type DeductRule struct {
	Category  string   `yaml:"category"`
	Pct       int      `yaml:"pct"`
	Article   string   `yaml:"article"`
	Condition string   `yaml:"condition,omitempty"`
	Keywords  []string `yaml:"keywords"`
}

// Table is the full rule set. Rate order in the slice is not significant (the
// classifier imposes the legal priority 4 -> 10 -> 0 -> 21); keyword order
// within a rule is, first match wins.
type Table struct {
	Rates  []RateRule   `yaml:"iva_rates"`
	Deduct []DeductRule `yaml:"deductibility_rules"`
}

// conditions holds the known rule predicates. Conditions are code, never
// strings evaluated at runtime.
var conditions = map[string]func(*models.UserProfile) bool{
	"works_from_home": (*models.UserProfile).WorksFromHome,
}

// Rate returns the rule for an IVA tier.
func (t *Table) Rate(rate int) (RateRule, bool) {
	for _, r := range t.Rates {
		if r.Rate == rate {
			return r, true
		}
	}
	return RateRule{}, false
}

// Category returns the deductibility rule with the given category name.
func (t *Table) Category(name string) (DeductRule, bool) {
	for _, d := range t.Deduct {
		if d.Category == name {
			return d, true
		}
	}
	return DeductRule{}, false
}

// ConditionMet evaluates the rule's condition against the profile. Rules
// without a condition always pass.
func (d DeductRule) ConditionMet(profile *models.UserProfile) bool {
	if d.Condition == "" {
		return true
	}
	pred, ok := conditions[d.Condition]
	if !ok || profile == nil {
		return false
	}
	return pred(profile)
}

// Validate checks the structural invariants of the table: all four IVA tiers
// present with a legal article each, all four deductibility categories present
// with percentages from {0, 30, 50, 100} and known condition names.
func (t *Table) Validate() error {
	for _, rate := range []int{0, 4, 10, 21} {
		r, ok := t.Rate(rate)
		if !ok {
			return fmt.Errorf("rule table: missing IVA tier %d%%", rate)
		}
		if r.Article == "" {
			return fmt.Errorf("rule table: IVA tier %d%% has no legal article", rate)
		}
	}
	for _, r := range t.Rates {
		if !models.ValidRate(r.Rate) {
			return fmt.Errorf("rule table: unknown IVA tier %d%%", r.Rate)
		}
	}

	required := []string{CategoryVehicle, CategoryHome, CategoryNonDeductible, CategoryProfessional}
	for _, name := range required {
		d, ok := t.Category(name)
		if !ok {
			return fmt.Errorf("rule table: missing deductibility category %q", name)
		}
		if d.Article == "" {
			return fmt.Errorf("rule table: category %q has no legal article", name)
		}
		switch d.Pct {
		case 0, 30, 50, 100:
		default:
			return fmt.Errorf("rule table: category %q has invalid percentage %d", name, d.Pct)
		}
		if d.Condition != "" {
			if _, known := conditions[d.Condition]; !known {
				return fmt.Errorf("rule table: category %q references unknown condition %q", name, d.Condition)
			}
		}
	}
	if home, _ := t.Category(CategoryHome); home.Condition == "" {
		return fmt.Errorf("rule table: category %q must carry a work-location condition", CategoryHome)
	}
	return nil
}

// Load reads a rule table from a YAML file and validates it. Any failure here
// is a configuration error: the caller must abort, not classify.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

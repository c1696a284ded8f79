// Package tax implements the deterministic classification core: IVA rate,
// deductibility percentage and the extracted-amount reconciliation gate.
// Nothing in this package calls a generative model or reads ambient state;
// the same inputs always produce the same verdict.
package tax

import (
	"fmt"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/rules"
)

// Confidence tiers. "high" means a rule keyword matched; "low" means the
// default was applied and the user should verify the verdict.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// RateVerdict is the result of classifying a line item into an IVA tier.
type RateVerdict struct {
	TipoIVA      int    `json:"tipo_iva"` // 0, 4, 10, 21
	Label        string `json:"label"`
	Article      string `json:"article"`
	Exempt       bool   `json:"exempt"`
	Confidence   string `json:"confidence"` // "high" or "low"
	MatchKeyword string `json:"match_keyword,omitempty"`
}

// DeductibilityVerdict is the result of classifying how much of the IVA paid
// on an expense can be offset. It carries the percentage only; the deductible
// amount is the caller's arithmetic (cuota_iva * pct / 100).
type DeductibilityVerdict struct {
	Deducible     bool   `json:"deducible"`
	Pct           int    `json:"porcentaje_deduccion"`
	Justification string `json:"justification"`
	Article       string `json:"article"`
	Confidence    string `json:"confidence"` // "high" or "low"
	MatchKeyword  string `json:"match_keyword,omitempty"`
}

// ClassifyRate maps a free-text concept and counterparty to an IVA tier.
//
// Tiers are checked in strict legal priority 4% -> 10% -> exempt -> 21%,
// short-circuiting on the first tier with a keyword hit. No hit at all
// defaults to the 21% general rate with low confidence.
func ClassifyRate(concepto, proveedor string, table *rules.Table) RateVerdict {
	combined := concepto + " " + proveedor

	for _, rate := range []int{4, 10, 0, 21} {
		rule, ok := table.Rate(rate)
		if !ok {
			continue
		}
		if kw := rules.MatchKeyword(combined, rule.Keywords); kw != "" {
			return RateVerdict{
				TipoIVA:      rule.Rate,
				Label:        rule.Label,
				Article:      rule.Article,
				Exempt:       rule.Rate == 0,
				Confidence:   ConfidenceHigh,
				MatchKeyword: kw,
			}
		}
	}

	general, _ := table.Rate(21)
	return RateVerdict{
		TipoIVA:    21,
		Label:      general.Label,
		Article:    general.Article,
		Confidence: ConfidenceLow,
	}
}

// ClassifyDeductibility decides which share of the IVA paid on an expense is
// deductible. Strict order, first match wins:
//
//  1. exempt invoices carry no IVA, nothing to deduct
//  2. vehicle expenses: 50%
//  3. home supplies: the profile's home-office percentage when working from
//     home, 0% when the profile says office only (the keyword match alone is
//     not sufficient)
//  4. personal / legally excluded expenses: 0%
//  5. professional expenses: 100%
//  6. no match: 100% with low confidence, surfaced for manual review
func ClassifyDeductibility(concepto string, tipoIVA int, exempt bool, profile *models.UserProfile, table *rules.Table) DeductibilityVerdict {
	_ = tipoIVA // the rate itself does not alter deductibility, only exemption does

	if exempt {
		exemptRule, _ := table.Rate(0)
		return DeductibilityVerdict{
			Pct:           0,
			Justification: "IVA exento - no deducible",
			Article:       exemptRule.Article,
			Confidence:    ConfidenceHigh,
		}
	}

	if rule, ok := table.Category(rules.CategoryVehicle); ok {
		if kw := rules.MatchKeyword(concepto, rule.Keywords); kw != "" {
			return DeductibilityVerdict{
				Deducible:     true,
				Pct:           rule.Pct,
				Justification: fmt.Sprintf("%d%% deducible - vehiculo (%s)", rule.Pct, kw),
				Article:       rule.Article,
				Confidence:    ConfidenceHigh,
				MatchKeyword:  kw,
			}
		}
	}

	if rule, ok := table.Category(rules.CategoryHome); ok {
		if kw := rules.MatchKeyword(concepto, rule.Keywords); kw != "" {
			if rule.ConditionMet(profile) {
				pct := rule.Pct
				if profile != nil && profile.HomeOfficePct > 0 {
					pct = profile.HomeOfficePct
				}
				return DeductibilityVerdict{
					Deducible:     true,
					Pct:           pct,
					Justification: fmt.Sprintf("%d%% deducible - suministro hogar (%s)", pct, kw),
					Article:       rule.Article,
					Confidence:    ConfidenceHigh,
					MatchKeyword:  kw,
				}
			}
			return DeductibilityVerdict{
				Pct:           0,
				Justification: "No deducible - trabajo en oficina, no aplica deduccion de hogar",
				Article:       rule.Article,
				Confidence:    ConfidenceHigh,
				MatchKeyword:  kw,
			}
		}
	}

	if rule, ok := table.Category(rules.CategoryNonDeductible); ok {
		if kw := rules.MatchKeyword(concepto, rule.Keywords); kw != "" {
			return DeductibilityVerdict{
				Pct:           0,
				Justification: fmt.Sprintf("No deducible - gasto personal (%s)", kw),
				Article:       rule.Article,
				Confidence:    ConfidenceHigh,
				MatchKeyword:  kw,
			}
		}
	}

	professional, _ := table.Category(rules.CategoryProfessional)
	if kw := rules.MatchKeyword(concepto, professional.Keywords); kw != "" {
		return DeductibilityVerdict{
			Deducible:     true,
			Pct:           professional.Pct,
			Justification: fmt.Sprintf("%d%% deducible - gasto profesional (%s)", professional.Pct, kw),
			Article:       professional.Article,
			Confidence:    ConfidenceHigh,
			MatchKeyword:  kw,
		}
	}

	// No keyword matched anywhere: generous default, flagged for review.
	return DeductibilityVerdict{
		Deducible:     true,
		Pct:           100,
		Justification: "100% deducible (clasificacion automatica - verificar manualmente)",
		Article:       professional.Article,
		Confidence:    ConfidenceLow,
	}
}

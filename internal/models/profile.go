package models

import "time"

// Work locations
const (
	LocationCasa    = "casa"
	LocationOficina = "oficina"
	LocationMixto   = "mixto"
)

// UserProfile holds the freelancer's fiscal situation, captured once during
// onboarding. The classification and aggregation core only reads it.
type UserProfile struct {
	UserID             string     `json:"user_id"`
	Nombre             string     `json:"nombre"`
	Actividad          string     `json:"actividad"`
	IAECode            string     `json:"iae_code"`
	IVARegime          string     `json:"iva_regime"` // "general", "simplificado", "exento"
	IRPFRetencionPct   int        `json:"irpf_retencion_pct"`
	WorkLocation       string     `json:"work_location"` // "casa", "oficina", "mixto"
	HomeOfficePct      int        `json:"home_office_pct"`
	SSBracketMonthly   float64    `json:"ss_bracket_monthly"`
	TarifaPlana        bool       `json:"tarifa_plana"`
	TarifaPlanaEndDate *time.Time `json:"tarifa_plana_end_date,omitempty"`
	AltaDate           *time.Time `json:"alta_date,omitempty"`
	Autonomia          string     `json:"autonomia"` // "peninsular", "canarias", "ceuta_melilla"
	OnboardingComplete bool       `json:"onboarding_complete"`
}

// WorksFromHome reports whether the home-supplies deduction condition applies.
func (p *UserProfile) WorksFromHome() bool {
	return p.WorkLocation == LocationCasa || p.WorkLocation == LocationMixto
}

// TarifaPlanaActive reports whether the flat-rate Social Security window is
// still open at the given date.
func (p *UserProfile) TarifaPlanaActive(at time.Time) bool {
	if !p.TarifaPlana {
		return false
	}
	if p.TarifaPlanaEndDate == nil {
		return true
	}
	return !at.After(*p.TarifaPlanaEndDate)
}

// TaxLabel returns the name of the consumption tax that applies in the
// freelancer's region. The Canary Islands use IGIC instead of IVA; the
// labeling changes, the percentage math does not.
func (p *UserProfile) TaxLabel() string {
	if p.Autonomia == "canarias" {
		return "IGIC"
	}
	return "IVA"
}

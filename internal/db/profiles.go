package db

import (
	"context"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
)

// GetProfile loads the user's tax profile. The classification core reads it
// and never writes it back; the only writer is UpsertProfile during
// onboarding and explicit profile edits.
func GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `
		SELECT user_id, nombre, actividad, iae_code, iva_regime,
		       irpf_retencion_pct, work_location, home_office_pct,
		       ss_bracket_monthly, tarifa_plana, tarifa_plana_end_date,
		       alta_date, autonomia, onboarding_complete
		FROM user_profiles
		WHERE user_id = $1
	`

	var p models.UserProfile
	err := Pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Nombre, &p.Actividad, &p.IAECode, &p.IVARegime,
		&p.IRPFRetencionPct, &p.WorkLocation, &p.HomeOfficePct,
		&p.SSBracketMonthly, &p.TarifaPlana, &p.TarifaPlanaEndDate,
		&p.AltaDate, &p.Autonomia, &p.OnboardingComplete,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or replaces the user's tax profile.
func UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (
			user_id, nombre, actividad, iae_code, iva_regime,
			irpf_retencion_pct, work_location, home_office_pct,
			ss_bracket_monthly, tarifa_plana, tarifa_plana_end_date,
			alta_date, autonomia, onboarding_complete
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			nombre = EXCLUDED.nombre,
			actividad = EXCLUDED.actividad,
			iae_code = EXCLUDED.iae_code,
			iva_regime = EXCLUDED.iva_regime,
			irpf_retencion_pct = EXCLUDED.irpf_retencion_pct,
			work_location = EXCLUDED.work_location,
			home_office_pct = EXCLUDED.home_office_pct,
			ss_bracket_monthly = EXCLUDED.ss_bracket_monthly,
			tarifa_plana = EXCLUDED.tarifa_plana,
			tarifa_plana_end_date = EXCLUDED.tarifa_plana_end_date,
			alta_date = EXCLUDED.alta_date,
			autonomia = EXCLUDED.autonomia,
			onboarding_complete = EXCLUDED.onboarding_complete
	`

	_, err := Pool.Exec(ctx, query,
		p.UserID, p.Nombre, p.Actividad, p.IAECode, p.IVARegime,
		p.IRPFRetencionPct, p.WorkLocation, p.HomeOfficePct,
		p.SSBracketMonthly, p.TarifaPlana, p.TarifaPlanaEndDate,
		p.AltaDate, p.Autonomia, p.OnboardingComplete,
	)
	return err
}

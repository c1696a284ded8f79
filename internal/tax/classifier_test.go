package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/rules"
)

func TestClassifyRate(t *testing.T) {
	table := rules.Default()

	tests := []struct {
		name       string
		concepto   string
		proveedor  string
		wantRate   int
		wantExempt bool
		wantConf   string
	}{
		{"general services", "Consultoría informática", "", 21, false, ConfidenceHigh},
		{"software license", "licencia anual software", "", 21, false, ConfidenceHigh},
		{"restaurant", "Menú del día", "Restaurante Casa Paco", 10, false, ConfidenceHigh},
		{"hotel stay", "alojamiento dos noches", "Hotel Playa", 10, false, ConfidenceHigh},
		{"basic food", "pan y leche", "Supermercado", 4, false, ConfidenceHigh},
		{"technical book", "libro de programación", "", 4, false, ConfidenceHigh},
		{"medical visit", "consulta médico de familia", "", 0, true, ConfidenceHigh},
		{"insurance", "seguro de responsabilidad civil", "", 0, true, ConfidenceHigh},
		{"keyword in supplier only", "cuota mensual", "Clinica Dental Sonrisa", 0, true, ConfidenceHigh},
		{"no keyword defaults to general", "cosa rarisima sin clasificar", "", 21, false, ConfidenceLow},
		{"empty concept defaults to general", "", "", 21, false, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ClassifyRate(tt.concepto, tt.proveedor, table)
			assert.Equal(t, tt.wantRate, v.TipoIVA)
			assert.Equal(t, tt.wantExempt, v.Exempt)
			assert.Equal(t, tt.wantConf, v.Confidence)
			if tt.wantConf == ConfidenceHigh {
				assert.NotEmpty(t, v.MatchKeyword)
			} else {
				assert.Empty(t, v.MatchKeyword)
			}
			assert.NotEmpty(t, v.Label)
			assert.NotEmpty(t, v.Article)
		})
	}
}

func TestClassifyRatePriority(t *testing.T) {
	table := rules.Default()

	// "libro" (4%) and "restaurante" (10%) in the same concept: the
	// superreduced tier is checked first and wins.
	v := ClassifyRate("libro comprado en el restaurante", "", table)
	assert.Equal(t, 4, v.TipoIVA)

	// "formacion" (exempt) and "software" (21%): exempt is checked before
	// the general tier.
	v = ClassifyRate("formacion sobre software", "", table)
	assert.Equal(t, 0, v.TipoIVA)
	assert.True(t, v.Exempt)
}

func TestClassifyDeductibility(t *testing.T) {
	table := rules.Default()
	casa := &models.UserProfile{WorkLocation: models.LocationCasa}
	oficina := &models.UserProfile{WorkLocation: models.LocationOficina}

	t.Run("exempt invoices deduct nothing", func(t *testing.T) {
		v := ClassifyDeductibility("consulta médico", 0, true, casa, table)
		assert.Equal(t, 0, v.Pct)
		assert.False(t, v.Deducible)
		assert.Equal(t, "IVA exento - no deducible", v.Justification)
		assert.Equal(t, ConfidenceHigh, v.Confidence)
	})

	t.Run("vehicle expenses are half deductible", func(t *testing.T) {
		v := ClassifyDeductibility("gasolina repsol", 21, false, casa, table)
		assert.Equal(t, 50, v.Pct)
		assert.True(t, v.Deducible)
		assert.Equal(t, ConfidenceHigh, v.Confidence)
		assert.Equal(t, "gasolina", v.MatchKeyword)
	})

	t.Run("home supplies working from home", func(t *testing.T) {
		v := ClassifyDeductibility("factura de luz", 21, false, casa, table)
		assert.Equal(t, 30, v.Pct)
		assert.True(t, v.Deducible)
		assert.Equal(t, ConfidenceHigh, v.Confidence)
	})

	t.Run("home supplies use profile percentage", func(t *testing.T) {
		profile := &models.UserProfile{WorkLocation: models.LocationMixto, HomeOfficePct: 40}
		v := ClassifyDeductibility("recibo de agua", 10, false, profile, table)
		assert.Equal(t, 40, v.Pct)
	})

	t.Run("home supplies from an office deduct nothing", func(t *testing.T) {
		v := ClassifyDeductibility("factura de luz", 21, false, oficina, table)
		assert.Equal(t, 0, v.Pct)
		assert.False(t, v.Deducible)
		assert.Equal(t, "No deducible - trabajo en oficina, no aplica deduccion de hogar", v.Justification)
		assert.Equal(t, ConfidenceHigh, v.Confidence)
	})

	t.Run("home supplies without profile deduct nothing", func(t *testing.T) {
		v := ClassifyDeductibility("internet fibra", 21, false, nil, table)
		assert.Equal(t, 0, v.Pct)
	})

	t.Run("personal expenses never deduct", func(t *testing.T) {
		v := ClassifyDeductibility("multa de tráfico", 21, false, casa, table)
		assert.Equal(t, 0, v.Pct)
		assert.False(t, v.Deducible)
		assert.Equal(t, ConfidenceHigh, v.Confidence)
	})

	t.Run("professional expenses fully deduct", func(t *testing.T) {
		v := ClassifyDeductibility("cuota de coworking", 21, false, casa, table)
		assert.Equal(t, 100, v.Pct)
		assert.True(t, v.Deducible)
		assert.Equal(t, ConfidenceHigh, v.Confidence)
	})

	t.Run("unmatched expenses default to fully deductible low confidence", func(t *testing.T) {
		v := ClassifyDeductibility("cosa rarisima sin clasificar", 21, false, casa, table)
		assert.Equal(t, 100, v.Pct)
		assert.True(t, v.Deducible)
		assert.Equal(t, ConfidenceLow, v.Confidence)
		assert.Contains(t, v.Justification, "verificar manualmente")
	})

	t.Run("vehicle beats professional when both match", func(t *testing.T) {
		// "combustible" (vehicle) plus "viaje" (professional): the vehicle
		// category is checked first.
		v := ClassifyDeductibility("combustible para viaje", 21, false, casa, table)
		assert.Equal(t, 50, v.Pct)
	})

	t.Run("article is always populated", func(t *testing.T) {
		for _, concepto := range []string{"gasolina", "luz", "multa", "software", "sin clasificar"} {
			v := ClassifyDeductibility(concepto, 21, false, casa, table)
			require.NotEmpty(t, v.Article, "concepto %q", concepto)
		}
	})
}

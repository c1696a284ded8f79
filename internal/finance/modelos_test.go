package finance

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
)

func TestModelo303(t *testing.T) {
	q2 := date(2025, time.May, 10)

	deductible := gasto(q2, 100, 21, 100) // cuota 21, deducible 21
	partial := gasto(q2, 40, 21, 50)      // cuota 8.4, deducible 4.2
	excluded := gasto(q2, 30, 21, 0)      // cuota 6.3, deducible 0

	entries := []models.LedgerEntry{
		ingreso(q2, 500, 21), // cuota 105
		deductible,
		partial,
		excluded,
		ingreso(date(2025, time.January, 10), 9999, 21), // other quarter
	}

	r := Modelo303(entries, "2025-Q2")

	assert.InDelta(t, 105.0, r.IVACobrado, 0.001)
	// Soportado total counts every expense IVA, deductible or not.
	assert.InDelta(t, 35.7, r.IVASoportadoTotal, 0.001)
	assert.InDelta(t, 25.2, r.IVASoportadoDeducible, 0.001)
	assert.InDelta(t, 79.8, r.Resultado, 0.001)
	assert.InDelta(t, 79.8, r.APagar, 0.001)
	assert.Zero(t, r.ACompensar)
}

func TestModelo303ACompensar(t *testing.T) {
	q1 := date(2025, time.February, 1)
	entries := []models.LedgerEntry{
		ingreso(q1, 238.10, 21),    // cuota 50.00
		gasto(q1, 380.95, 21, 100), // cuota 80.00
	}

	r := Modelo303(entries, "2025-Q1")
	assert.InDelta(t, -30.0, r.Resultado, 0.01)
	assert.Zero(t, r.APagar)
	assert.InDelta(t, 30.0, r.ACompensar, 0.01)
}

func TestModelo303BalancedQuarter(t *testing.T) {
	q1 := date(2025, time.February, 1)
	entries := []models.LedgerEntry{
		ingreso(q1, 238.10, 21),    // cuota 50.00
		gasto(q1, 238.10, 21, 100), // cuota 50.00, fully deducible
	}

	r := Modelo303(entries, "2025-Q1")
	assert.Zero(t, r.Resultado)
	assert.Zero(t, r.APagar)
	assert.Zero(t, r.ACompensar)
	assert.False(t, math.Signbit(r.ACompensar), "a_compensar must not be -0")

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "-0")
}

func TestModelo130(t *testing.T) {
	q1 := date(2025, time.February, 1)
	entries := []models.LedgerEntry{
		ingreso(q1, 1500, 21),
		gasto(q1, 300, 21, 100),
		// Non-deductible expenses never reduce the Modelo 130 profit.
		gasto(q1, 120, 21, 0),
	}

	r := Modelo130(entries, 50)

	assert.InDelta(t, 1500.0, r.IngresosYTD, 0.001)
	assert.InDelta(t, 300.0, r.GastosDeduciblesYTD, 0.001)
	assert.InDelta(t, 1200.0, r.BeneficioYTD, 0.001)
	assert.InDelta(t, 240.0, r.PagoFraccionadoBruto, 0.001)
	assert.InDelta(t, 50.0, r.RetencionesYTD, 0.001)
	assert.InDelta(t, 190.0, r.PagoNeto, 0.001)
}

func TestModelo130Floors(t *testing.T) {
	q1 := date(2025, time.February, 1)

	t.Run("loss-making year pays nothing", func(t *testing.T) {
		entries := []models.LedgerEntry{
			ingreso(q1, 100, 21),
			gasto(q1, 900, 21, 100),
		}
		r := Modelo130(entries, 0)
		assert.InDelta(t, -800.0, r.BeneficioYTD, 0.001)
		assert.Zero(t, r.PagoFraccionadoBruto)
		assert.Zero(t, r.PagoNeto)
	})

	t.Run("retenciones exceeding the prepayment floor at zero", func(t *testing.T) {
		entries := []models.LedgerEntry{ingreso(q1, 500, 21)}
		r := Modelo130(entries, 400)
		assert.InDelta(t, 100.0, r.PagoFraccionadoBruto, 0.001)
		assert.Zero(t, r.PagoNeto)
	})
}

func TestNextDeadline(t *testing.T) {
	t.Run("upcoming deadline", func(t *testing.T) {
		d, err := NextDeadline("2025-Q1", date(2025, time.March, 1))
		require.NoError(t, err)
		assert.Equal(t, "2025-04-20", d.DeadlineDate)
		assert.Equal(t, 50, d.DaysRemaining)
		assert.Equal(t, "303/130", d.Modelo)
	})

	t.Run("q4 files in january of the next year", func(t *testing.T) {
		d, err := NextDeadline("2025-Q4", date(2025, time.November, 10))
		require.NoError(t, err)
		assert.Equal(t, "2026-01-20", d.DeadlineDate)
	})

	t.Run("past deadline rolls to the next quarter", func(t *testing.T) {
		d, err := NextDeadline("2025-Q1", date(2025, time.May, 1))
		require.NoError(t, err)
		assert.Equal(t, "2025-07-20", d.DeadlineDate)
	})

	t.Run("past q4 deadline rolls into the new year", func(t *testing.T) {
		d, err := NextDeadline("2025-Q4", date(2026, time.February, 1))
		require.NoError(t, err)
		assert.Equal(t, "2026-04-20", d.DeadlineDate)
	})

	t.Run("invalid keys", func(t *testing.T) {
		for _, key := range []string{"", "2025", "2025-Q5", "2025-Q0", "banana-Q1"} {
			_, err := NextDeadline(key, date(2025, time.January, 1))
			assert.Error(t, err, "key %q", key)
		}
	})
}

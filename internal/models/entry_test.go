package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() LedgerEntry {
	return LedgerEntry{
		Fecha:               time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		Tipo:                TipoGasto,
		Concepto:            "gasolina",
		BaseImponible:       50,
		TipoIVA:             21,
		CuotaIVA:            10.5,
		Total:               60.5,
		Deducible:           true,
		PorcentajeDeduccion: 50,
		CuotaIVADeducible:   5.25,
		Estado:              EstadoPendiente,
		Origen:              OrigenManual,
	}
}

func TestValidRate(t *testing.T) {
	for _, r := range []int{0, 4, 10, 21} {
		assert.True(t, ValidRate(r), "rate %d", r)
	}
	for _, r := range []int{-1, 1, 18, 16, 100} {
		assert.False(t, ValidRate(r), "rate %d", r)
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	t.Run("valid entry passes", func(t *testing.T) {
		e := validEntry()
		require.NoError(t, e.Validate())
	})

	t.Run("valid ingreso passes", func(t *testing.T) {
		e := validEntry()
		e.Tipo = TipoIngreso
		e.Deducible = false
		e.PorcentajeDeduccion = 0
		e.CuotaIVADeducible = 0
		require.NoError(t, e.Validate())
	})

	t.Run("unknown tipo", func(t *testing.T) {
		e := validEntry()
		e.Tipo = "prestamo"
		assert.Error(t, e.Validate())
	})

	t.Run("missing fecha", func(t *testing.T) {
		e := validEntry()
		e.Fecha = time.Time{}
		assert.Error(t, e.Validate())
	})

	t.Run("illegal rate", func(t *testing.T) {
		e := validEntry()
		e.TipoIVA = 18
		assert.Error(t, e.Validate())
	})

	t.Run("negative base", func(t *testing.T) {
		e := validEntry()
		e.BaseImponible = -10
		assert.Error(t, e.Validate())
	})

	t.Run("non-finite amounts", func(t *testing.T) {
		for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
			e := validEntry()
			e.CuotaIVA = v
			assert.Error(t, e.Validate())
		}
	})

	t.Run("percentage out of range", func(t *testing.T) {
		e := validEntry()
		e.PorcentajeDeduccion = 101
		assert.Error(t, e.Validate())

		e = validEntry()
		e.PorcentajeDeduccion = -1
		assert.Error(t, e.Validate())
	})
}

func TestUserProfileHelpers(t *testing.T) {
	t.Run("works from home", func(t *testing.T) {
		assert.True(t, (&UserProfile{WorkLocation: LocationCasa}).WorksFromHome())
		assert.True(t, (&UserProfile{WorkLocation: LocationMixto}).WorksFromHome())
		assert.False(t, (&UserProfile{WorkLocation: LocationOficina}).WorksFromHome())
		assert.False(t, (&UserProfile{}).WorksFromHome())
	})

	t.Run("tarifa plana window", func(t *testing.T) {
		now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		end := now.AddDate(0, 6, 0)

		assert.False(t, (&UserProfile{}).TarifaPlanaActive(now))
		assert.True(t, (&UserProfile{TarifaPlana: true}).TarifaPlanaActive(now))

		p := &UserProfile{TarifaPlana: true, TarifaPlanaEndDate: &end}
		assert.True(t, p.TarifaPlanaActive(now))
		assert.True(t, p.TarifaPlanaActive(end))
		assert.False(t, p.TarifaPlanaActive(end.AddDate(0, 0, 1)))
	})

	t.Run("tax label per region", func(t *testing.T) {
		assert.Equal(t, "IVA", (&UserProfile{Autonomia: "peninsular"}).TaxLabel())
		assert.Equal(t, "IVA", (&UserProfile{}).TaxLabel())
		assert.Equal(t, "IGIC", (&UserProfile{Autonomia: "canarias"}).TaxLabel())
	})
}

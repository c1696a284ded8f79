package finance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/tax"
)

// Modelo303Result is the quarterly VAT settlement projection. The sign of the
// settlement is resolved into the two non-negative fields APagar and
// ACompensar so callers never interpret a signed result for display.
type Modelo303Result struct {
	IVACobrado            float64 `json:"iva_cobrado"`
	IVASoportadoTotal     float64 `json:"iva_soportado_total"`
	IVASoportadoDeducible float64 `json:"iva_soportado_deducible"`
	Resultado             float64 `json:"resultado"`
	APagar                float64 `json:"a_pagar"`
	ACompensar            float64 `json:"a_compensar"`
}

// Modelo130Result is the quarterly income-tax prepayment projection over
// year-to-date figures.
type Modelo130Result struct {
	IngresosYTD          float64 `json:"ingresos_ytd"`
	GastosDeduciblesYTD  float64 `json:"gastos_deducibles_ytd"`
	BeneficioYTD         float64 `json:"beneficio_ytd"`
	PagoFraccionadoBruto float64 `json:"pago_fraccionado_bruto"`
	RetencionesYTD       float64 `json:"retenciones_ytd"`
	PagoNeto             float64 `json:"pago_neto"`
}

// Deadline is the next filing deadline for the quarterly models.
type Deadline struct {
	Modelo        string `json:"modelo"`
	DeadlineDate  string `json:"deadline_date"` // YYYY-MM-DD
	DaysRemaining int    `json:"days_remaining"`
}

// Modelo303 computes the VAT settlement for one quarter of the snapshot.
// Soportado total counts every expense IVA regardless of deductibility;
// only the deductible share offsets the IVA collected.
func Modelo303(entries []models.LedgerEntry, quarter string) Modelo303Result {
	var r Modelo303Result
	for _, e := range entries {
		if EntryQuarter(e) != quarter {
			continue
		}
		switch e.Tipo {
		case models.TipoIngreso:
			r.IVACobrado += e.CuotaIVA
		case models.TipoGasto:
			r.IVASoportadoTotal += e.CuotaIVA
			r.IVASoportadoDeducible += e.CuotaIVADeducible
		}
	}
	r.IVACobrado = tax.Round2(r.IVACobrado)
	r.IVASoportadoTotal = tax.Round2(r.IVASoportadoTotal)
	r.IVASoportadoDeducible = tax.Round2(r.IVASoportadoDeducible)
	r.Resultado = tax.Round2(r.IVACobrado - r.IVASoportadoDeducible)
	// A balanced quarter leaves both fields at +0; negating a zero
	// resultado would store -0, which json renders as "-0".
	if r.Resultado > 0 {
		r.APagar = r.Resultado
	} else if r.Resultado < 0 {
		r.ACompensar = -r.Resultado
	}
	return r
}

// Modelo130 computes the income-tax prepayment from year-to-date entries and
// the IRPF retenciones clients already withheld. Only deductible expenses
// reduce the profit; the 20% rate and the zero floors are policy constants of
// this projection, not configuration.
func Modelo130(entriesYTD []models.LedgerEntry, retencionesYTD float64) Modelo130Result {
	r := Modelo130Result{RetencionesYTD: retencionesYTD}
	for _, e := range entriesYTD {
		switch e.Tipo {
		case models.TipoIngreso:
			r.IngresosYTD += e.BaseImponible
		case models.TipoGasto:
			if e.Deducible {
				r.GastosDeduciblesYTD += e.BaseImponible
			}
		}
	}
	r.IngresosYTD = tax.Round2(r.IngresosYTD)
	r.GastosDeduciblesYTD = tax.Round2(r.GastosDeduciblesYTD)
	r.BeneficioYTD = tax.Round2(r.IngresosYTD - r.GastosDeduciblesYTD)

	bruto := r.BeneficioYTD * IRPFProvisionRate
	if bruto < 0 {
		bruto = 0
	}
	r.PagoFraccionadoBruto = tax.Round2(bruto)

	neto := r.PagoFraccionadoBruto - retencionesYTD
	if neto < 0 {
		neto = 0
	}
	r.PagoNeto = tax.Round2(neto)
	return r
}

// deadlineDay returns the filing deadline for a quarter: the 20th of the
// month after it closes (Q4 files in January of the next year).
func deadlineDay(year, quarter int) time.Time {
	months := map[int]time.Month{1: time.April, 2: time.July, 3: time.October, 4: time.January}
	y := year
	if quarter == 4 {
		y++
	}
	return time.Date(y, months[quarter], 20, 0, 0, 0, 0, time.UTC)
}

// NextDeadline computes the next 303/130 filing deadline for the given
// quarter key. A deadline already in the past rolls forward to the following
// quarter's.
func NextDeadline(quarter string, today time.Time) (Deadline, error) {
	year, q, err := parseQuarter(quarter)
	if err != nil {
		return Deadline{}, err
	}

	deadline := deadlineDay(year, q)
	if deadline.Before(today) {
		if q == 4 {
			year++
			q = 1
		} else {
			q++
		}
		deadline = deadlineDay(year, q)
	}

	return Deadline{
		Modelo:        "303/130",
		DeadlineDate:  deadline.Format("2006-01-02"),
		DaysRemaining: int(deadline.Sub(today).Hours() / 24),
	}, nil
}

// parseQuarter splits a "YYYY-Qn" key into year and quarter number.
func parseQuarter(quarter string) (year, q int, err error) {
	parts := strings.SplitN(quarter, "-Q", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid quarter key %q, want YYYY-Qn", quarter)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quarter key %q: %w", quarter, err)
	}
	q, err = strconv.Atoi(parts[1])
	if err != nil || q < 1 || q > 4 {
		return 0, 0, fmt.Errorf("invalid quarter number in %q", quarter)
	}
	return year, q, nil
}

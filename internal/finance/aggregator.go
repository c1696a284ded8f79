// Package finance rolls classified ledger entries into quarterly and
// year-to-date projections: summaries, monthly breakdowns, receivables aging
// and the Modelo 303 / Modelo 130 filings. Every function is pure over the
// entry slice it receives; callers pass a consistent snapshot and the package
// performs no I/O.
package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/tax"
)

// IRPFProvisionRate is the flat simplified income-tax provisioning rate used
// for live projections. It is deliberately not the progressive bracket table;
// see IRPFEstimate for the annual calculation.
const IRPFProvisionRate = 0.20

// Summary aggregates one quarter (or a YTD range) of ledger entries. Every
// numeric field is a concrete value, zero over an empty entry set.
type Summary struct {
	TotalIngresos         float64 `json:"total_ingresos"`
	TotalGastosBase       float64 `json:"total_gastos_base"`
	TotalGastosDeducibles float64 `json:"total_gastos_deducibles"`
	IVACobrado            float64 `json:"iva_cobrado"`
	IVASoportadoDeducible float64 `json:"iva_soportado_deducible"`
	Resultado303          float64 `json:"resultado_303"`
	BeneficioNeto         float64 `json:"beneficio_neto"`
	IRPFProvision         float64 `json:"irpf_provision"`
	NumFacturas           int     `json:"n_facturas"`
	NumGastos             int     `json:"n_gastos"`
}

// MonthRow is one month of the yearly breakdown.
type MonthRow struct {
	Month        int     `json:"month"` // 1-12
	Ingresos     float64 `json:"ingresos"`
	GastosBase   float64 `json:"gastos_base"`
	TaxProvision float64 `json:"tax_provision"`
}

// AgedEntry is an unpaid revenue entry with its aging bucket.
type AgedEntry struct {
	Entry           models.LedgerEntry `json:"entry"`
	DaysOutstanding int                `json:"days_outstanding"`
	AgingBucket     string             `json:"aging_bucket"` // "0-30", "31-60", "61-90", "90+"
}

// EntryError reports one malformed entry rejected during sanitization.
type EntryError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   string `json:"error"`
}

// QuarterOf derives the fiscal quarter key for a date: months 1-3 -> Q1,
// 4-6 -> Q2, 7-9 -> Q3, 10-12 -> Q4, formatted "YYYY-Qn". Total function,
// never fails for a valid date.
func QuarterOf(d time.Time) string {
	q := (int(d.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", d.Year(), q)
}

// EntryQuarter prefers the quarter derived from the entry date; the stored
// key is only a fallback for rows without a usable date. Every quarter
// filter, listing or aggregate, must use this so a re-dated entry moves
// consistently.
func EntryQuarter(e models.LedgerEntry) string {
	if e.Fecha.IsZero() {
		return e.Trimestre
	}
	return QuarterOf(e.Fecha)
}

// Sanitize splits an untrusted snapshot into the entries that pass shape
// validation and the per-entry errors for the rest. One bad historical row
// never blanks out a whole report.
func Sanitize(entries []models.LedgerEntry) ([]models.LedgerEntry, []EntryError) {
	valid := make([]models.LedgerEntry, 0, len(entries))
	var errs []EntryError
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			id := ""
			if e.ID != uuid.Nil {
				id = e.ID.String()
			}
			errs = append(errs, EntryError{Index: i, ID: id, Err: err.Error()})
			continue
		}
		valid = append(valid, e)
	}
	return valid, errs
}

// QuarterlySummary filters the snapshot to one quarter and totals it.
func QuarterlySummary(entries []models.LedgerEntry, quarter string) Summary {
	var filtered []models.LedgerEntry
	for _, e := range entries {
		if EntryQuarter(e) == quarter {
			filtered = append(filtered, e)
		}
	}
	return summarize(filtered)
}

// YTDSummary totals Q1 through throughQuarter (inclusive) of a year.
func YTDSummary(entries []models.LedgerEntry, year, throughQuarter int) Summary {
	include := make(map[string]bool, throughQuarter)
	for q := 1; q <= throughQuarter; q++ {
		include[fmt.Sprintf("%d-Q%d", year, q)] = true
	}
	var filtered []models.LedgerEntry
	for _, e := range entries {
		if include[EntryQuarter(e)] {
			filtered = append(filtered, e)
		}
	}
	return summarize(filtered)
}

// summarize is the totaling step shared by quarterly and YTD summaries.
func summarize(entries []models.LedgerEntry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Tipo {
		case models.TipoIngreso:
			s.TotalIngresos += e.BaseImponible
			s.IVACobrado += e.CuotaIVA
			s.NumFacturas++
		case models.TipoGasto:
			s.TotalGastosBase += e.BaseImponible
			s.IVASoportadoDeducible += e.CuotaIVADeducible
			if e.Deducible {
				s.TotalGastosDeducibles += e.BaseImponible
			}
			s.NumGastos++
		}
	}
	s.TotalIngresos = tax.Round2(s.TotalIngresos)
	s.TotalGastosBase = tax.Round2(s.TotalGastosBase)
	s.TotalGastosDeducibles = tax.Round2(s.TotalGastosDeducibles)
	s.IVACobrado = tax.Round2(s.IVACobrado)
	s.IVASoportadoDeducible = tax.Round2(s.IVASoportadoDeducible)
	s.Resultado303 = tax.Round2(s.IVACobrado - s.IVASoportadoDeducible)
	s.BeneficioNeto = tax.Round2(s.TotalIngresos - s.TotalGastosDeducibles)
	s.IRPFProvision = tax.Round2(s.BeneficioNeto * IRPFProvisionRate)
	return s
}

// MonthlyBreakdown buckets a year's entries by month. It always returns
// exactly 12 rows; months without entries are zero rows.
func MonthlyBreakdown(entries []models.LedgerEntry, year int) []MonthRow {
	rows := make([]MonthRow, 12)
	for m := range rows {
		rows[m].Month = m + 1
	}
	for _, e := range entries {
		if e.Fecha.IsZero() || e.Fecha.Year() != year {
			continue
		}
		row := &rows[int(e.Fecha.Month())-1]
		switch e.Tipo {
		case models.TipoIngreso:
			row.Ingresos += e.BaseImponible
		case models.TipoGasto:
			row.GastosBase += e.BaseImponible
		}
	}
	for m := range rows {
		rows[m].Ingresos = tax.Round2(rows[m].Ingresos)
		rows[m].GastosBase = tax.Round2(rows[m].GastosBase)
		provision := (rows[m].Ingresos - rows[m].GastosBase) * IRPFProvisionRate
		if provision < 0 {
			provision = 0
		}
		rows[m].TaxProvision = tax.Round2(provision)
	}
	return rows
}

// AgingAsOf buckets unpaid revenue entries by days outstanding relative to
// the given day, oldest first so the most urgent items surface on top.
func AgingAsOf(entries []models.LedgerEntry, today time.Time) []AgedEntry {
	var aged []AgedEntry
	for _, e := range entries {
		if e.Tipo != models.TipoIngreso || e.Estado == models.EstadoPagado {
			continue
		}
		days := 0
		if !e.Fecha.IsZero() {
			days = int(today.Sub(e.Fecha).Hours() / 24)
		}
		aged = append(aged, AgedEntry{
			Entry:           e,
			DaysOutstanding: days,
			AgingBucket:     agingBucket(days),
		})
	}
	sort.SliceStable(aged, func(i, j int) bool {
		return aged[i].Entry.Fecha.Before(aged[j].Entry.Fecha)
	})
	return aged
}

// Aging is AgingAsOf relative to the current day.
func Aging(entries []models.LedgerEntry) []AgedEntry {
	return AgingAsOf(entries, time.Now())
}

func agingBucket(days int) string {
	switch {
	case days <= 30:
		return "0-30"
	case days <= 60:
		return "31-60"
	case days <= 90:
		return "61-90"
	default:
		return "90+"
	}
}

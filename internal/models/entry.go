package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Entry types (tipo)
const (
	TipoGasto   = "gasto"
	TipoIngreso = "ingreso"
)

// Payment states (estado)
const (
	EstadoPendiente = "pendiente"
	EstadoPagado    = "pagado"
)

// Entry origins (origen)
const (
	OrigenManual  = "manual"
	OrigenScanner = "scanner"
	OrigenEmail   = "email"
)

// LedgerEntry is one financial record of the freelancer's ledger: a single
// expense (gasto) or revenue (ingreso) line with its IVA breakdown and
// deductibility classification already resolved.
type LedgerEntry struct {
	ID                  uuid.UUID  `json:"id"`
	Fecha               time.Time  `json:"fecha"`
	Tipo                string     `json:"tipo"` // "gasto" or "ingreso"
	ProveedorCliente    string     `json:"proveedor_cliente"`
	NIF                 string     `json:"nif,omitempty"`
	Concepto            string     `json:"concepto"`
	NumeroFactura       string     `json:"numero_factura,omitempty"`
	BaseImponible       float64    `json:"base_imponible"`
	TipoIVA             int        `json:"tipo_iva"` // 0, 4, 10, 21
	CuotaIVA            float64    `json:"cuota_iva"`
	Total               float64    `json:"total"`
	Deducible           bool       `json:"deducible"`
	PorcentajeDeduccion int        `json:"porcentaje_deduccion"`
	CuotaIVADeducible   float64    `json:"cuota_iva_deducible"`
	AEATArticulo        string     `json:"aeat_articulo,omitempty"`
	Trimestre           string     `json:"trimestre"`                // "YYYY-Qn", derived from Fecha
	Estado              string     `json:"estado"`                   // "pendiente" or "pagado"
	Origen              string     `json:"origen"`                   // "manual", "scanner", "email"
	DocumentoPath       string     `json:"documento_path,omitempty"` // object-storage path of the scanned source
	CreatedAt           time.Time  `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// validRates are the IVA tiers Spanish law defines for this ledger.
var validRates = map[int]bool{0: true, 4: true, 10: true, 21: true}

// ValidRate reports whether r is one of the legal IVA tiers (0/4/10/21).
func ValidRate(r int) bool {
	return validRates[r]
}

// Validate checks the shape of an entry coming from an untrusted caller.
// A failing entry is rejected individually; it never aborts batch aggregation.
func (e *LedgerEntry) Validate() error {
	if e.Tipo != TipoGasto && e.Tipo != TipoIngreso {
		return fmt.Errorf("tipo must be %q or %q, got %q", TipoGasto, TipoIngreso, e.Tipo)
	}
	if e.Fecha.IsZero() {
		return fmt.Errorf("fecha is required")
	}
	if !ValidRate(e.TipoIVA) {
		return fmt.Errorf("tipo_iva must be one of 0/4/10/21, got %d", e.TipoIVA)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"base_imponible", e.BaseImponible},
		{"cuota_iva", e.CuotaIVA},
		{"total", e.Total},
		{"cuota_iva_deducible", e.CuotaIVADeducible},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not a finite number", f.name)
		}
	}
	if e.BaseImponible < 0 {
		return fmt.Errorf("base_imponible must not be negative, got %.2f", e.BaseImponible)
	}
	if e.PorcentajeDeduccion < 0 || e.PorcentajeDeduccion > 100 {
		return fmt.Errorf("porcentaje_deduccion must be within 0-100, got %d", e.PorcentajeDeduccion)
	}
	return nil
}

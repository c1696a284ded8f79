package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedInvoice represents the fields pulled out of a scanned document by
// the OCR + AI pipeline, before reconciliation and classification. Amounts
// stay as decimals here; they are rounded into the ledger only when the user
// accepts the draft entry.
type ExtractedInvoice struct {
	Proveedor     string          `json:"proveedor"`
	NIFProveedor  string          `json:"nif_proveedor,omitempty"`
	Fecha         time.Time       `json:"fecha,omitempty"`
	NumeroFactura string          `json:"numero_factura,omitempty"`
	Concepto      string          `json:"concepto"`
	BaseImponible decimal.Decimal `json:"base_imponible"`
	TipoIVA       int             `json:"tipo_iva"` // 0, 4, 10, 21
	CuotaIVA      decimal.Decimal `json:"cuota_iva"`
	Total         decimal.Decimal `json:"total"`
	TipoDocumento string          `json:"tipo_documento,omitempty"` // "factura", "ticket", "recibo", "otro"

	// Raw data
	RawText string `json:"raw_text,omitempty"`

	// Metadata
	Confidence  float64   `json:"confidence"` // Overall extraction confidence (0-1)
	ProcessedAt time.Time `json:"processed_at"`
}

// DraftEntry is the reviewed output of the document pipeline: the extracted
// fields after reconciliation plus both classification verdicts. It is
// returned to the caller for confirmation and only becomes a LedgerEntry once
// the user accepts it.
type DraftEntry struct {
	Entry LedgerEntry `json:"entry"`

	// Reconciliation
	IVADiscrepancy bool    `json:"iva_discrepancy"`
	CuotaExtraida  float64 `json:"cuota_extraida"`

	// Classification audit trail
	IVALabel          string `json:"iva_label"`
	IVAConfidence     string `json:"iva_confidence"` // "high" or "low"
	Exenta            bool   `json:"exenta"`
	MatchKeyword      string `json:"match_keyword,omitempty"`
	DeduccionMotivo   string `json:"deduccion_motivo"`
	DeduccionArticulo string `json:"deduccion_articulo"`

	// Pipeline metadata
	ExtractionMethod     string  `json:"extraction_method"` // "tesseract" or "vision"
	ExtractionConfidence float64 `json:"extraction_confidence"`
	DocumentURL          string  `json:"document_url,omitempty"`
}

// ProcessResponse is the HTTP payload of the document pipeline.
type ProcessResponse struct {
	Success bool        `json:"success"`
	Draft   *DraftEntry `json:"draft,omitempty"`
	Error   string      `json:"error,omitempty"`

	OCRDuration   float64 `json:"ocrDuration,omitempty"`
	AIDuration    float64 `json:"aiDuration,omitempty"`
	TotalDuration float64 `json:"totalDuration"`
}

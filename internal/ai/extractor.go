package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/shopspring/decimal"
)

// Extractor handles AI-based data extraction from OCR text or images
type Extractor struct {
	provider Provider
}

// NewExtractor creates a new AI extractor
func NewExtractor(provider Provider) *Extractor {
	return &Extractor{provider: provider}
}

// Extract processes OCR text or an image and returns structured invoice data
func (e *Extractor) Extract(ocrText string, imageBase64 string) (*models.ExtractedInvoice, float64, error) {
	startTime := time.Now()

	// Vision mode when there is an image but no usable OCR text
	isVisionMode := imageBase64 != "" && strings.TrimSpace(ocrText) == ""

	var prompt string
	if isVisionMode {
		prompt = e.buildPromptVision()
	} else {
		prompt = e.buildPromptText(ocrText)
	}

	response, err := e.provider.ExtractData(prompt, imageBase64)
	if err != nil {
		return nil, 0, fmt.Errorf("AI extraction failed: %w", err)
	}

	duration := time.Since(startTime).Seconds()

	invoice, err := e.parseResponse(response, ocrText)
	if err != nil {
		return nil, duration, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return invoice, duration, nil
}

// buildPromptVision creates the prompt for direct image analysis
func (e *Extractor) buildPromptVision() string {
	currentYear := time.Now().Year()

	return fmt.Sprintf(`Eres un EXPERTO en facturas y tickets espanoles. Tu trabajo es LEER CUIDADOSAMENTE la imagen y extraer los datos fiscales de este gasto de un trabajador autonomo.

## INSTRUCCIONES DE LECTURA

PASO 1 - EXAMINA TODA LA IMAGEN:
- Encabezado: logo, nombre del proveedor, NIF/CIF, direccion
- Parte central: conceptos, importes, desglose de IVA
- Parte inferior: totales, forma de pago, numero de factura

PASO 2 - IDENTIFICA EL TIPO DE DOCUMENTO:
- FACTURA: tiene numero de factura, NIF del emisor y desglose de IVA
- TICKET: papel termico de tienda o restaurante, normalmente sin NIF del cliente
- RECIBO: justificante de pago sin desglose fiscal completo

PASO 3 - FORMATO NIF/CIF ESPANOL:
- Personas: 8 digitos + letra (ej: 12345678Z)
- Empresas: letra + 7 digitos + digito/letra de control (ej: B12345678)
- Quita espacios y guiones al extraer

## CAMPOS A EXTRAER

Devuelve SOLO JSON valido (sin markdown, sin comentarios):
{
  "proveedor": "nombre de la empresa o profesional que emite la factura",
  "nif_proveedor": "NIF o CIF del emisor, sin guiones, null si no aparece",
  "fecha": "YYYY-MM-DD",
  "numero_factura": "numero de la factura, null si es un ticket sin numero",
  "concepto": "descripcion breve del gasto (ej: 'gasolina', 'comida restaurante', 'cuota internet fibra')",
  "base_imponible": numero (base antes de IVA, usa 0 si no aparece),
  "tipo_iva": numero (21, 10, 4 o 0 segun el desglose de la factura; usa 21 si no hay desglose),
  "cuota_iva": numero (importe de IVA en euros, usa 0 si no aparece),
  "total": numero final a pagar (usa 0 si no aparece, NUNCA null),
  "tipo_documento": "factura|ticket|recibo|otro"
}

## REGLAS CRITICAS

1. LEE CARACTER POR CARACTER si el texto es dificil
2. Si el ticket solo muestra el total con IVA incluido, calcula base_imponible = total / 1.21 y cuota_iva = total - base_imponible SOLO si el documento indica el tipo de IVA; si no, deja base y cuota en 0 y pon solo el total
3. NUNCA inventes datos - usa null para textos que no puedas leer
4. El concepto debe describir QUE se compro, no el nombre del proveedor
5. Si hay varios tipos de IVA en la misma factura, usa el del importe mayor
6. Ano por defecto si no se ve: %d
7. NUNCA devuelvas null para base_imponible, cuota_iva o total - usa 0

AHORA ANALIZA LA IMAGEN CUIDADOSAMENTE y extrae los datos.`, currentYear)
}

// buildPromptText creates the prompt for OCR text mode
func (e *Extractor) buildPromptText(ocrText string) string {
	currentYear := time.Now().Year()

	return fmt.Sprintf(`Eres un EXPERTO en facturas y tickets espanoles. Extrae los datos fiscales de este texto OCR de un gasto de un trabajador autonomo.

## FORMATO NIF/CIF ESPANOL
- Personas: 8 digitos + letra (ej: 12345678Z)
- Empresas: letra + 7 digitos + digito/letra de control (ej: B12345678)
- Quita espacios y guiones al extraer
- Busca "NIF:", "CIF:", "N.I.F.", "C.I.F."

## TIPOS DE IVA EN ESPANA
- 21%%: tipo general (servicios, tecnologia, suministros, combustible)
- 10%%: tipo reducido (hosteleria, transporte, entradas culturales)
- 4%%: tipo superreducido (alimentos basicos, libros, medicamentos)
- 0%%: operaciones exentas (sanidad, formacion reglada, seguros)

## CAMPOS A EXTRAER

Devuelve SOLO JSON valido (sin markdown, sin comentarios):
{
  "proveedor": "nombre de la empresa o profesional que emite la factura",
  "nif_proveedor": "NIF o CIF del emisor, sin guiones, null si no aparece",
  "fecha": "YYYY-MM-DD",
  "numero_factura": "numero de la factura, null si es un ticket sin numero",
  "concepto": "descripcion breve del gasto (ej: 'gasolina', 'comida restaurante', 'cuota internet fibra')",
  "base_imponible": numero (base antes de IVA, usa 0 si no aparece),
  "tipo_iva": numero (21, 10, 4 o 0 segun el desglose; usa 21 si no hay desglose),
  "cuota_iva": numero (importe de IVA en euros, usa 0 si no aparece),
  "total": numero final a pagar (usa 0 si no aparece, NUNCA null),
  "tipo_documento": "factura|ticket|recibo|otro"
}

## REGLAS CRITICAS
1. Base imponible: busca "Base", "Base Imponible", "B.I.", "Subtotal"
2. Cuota IVA: busca "IVA", "I.V.A.", "Cuota"
3. Si hay varios tipos de IVA en la misma factura, usa el del importe mayor
4. El concepto debe describir QUE se compro, no el nombre del proveedor
5. Si no encuentras un dato, usa null para strings o 0 para numeros
6. Ano por defecto si no se ve: %d
7. Todos los importes deben ser numeros decimales (no strings)
8. NUNCA inventes ni calcules importes que no aparezcan en el texto

AHORA ANALIZA EL TEXTO y extrae los datos fiscales.

Texto del documento:
%s`, currentYear, ocrText)
}

// parseResponse converts the AI JSON response into an ExtractedInvoice
func (e *Extractor) parseResponse(response string, ocrText string) (*models.ExtractedInvoice, error) {
	// Clean response (remove markdown code blocks if present)
	cleaned := strings.TrimSpace(response)
	backticks := string([]byte{96, 96, 96})
	cleaned = strings.ReplaceAll(cleaned, backticks+"json", "")
	cleaned = strings.ReplaceAll(cleaned, backticks, "")
	cleaned = strings.TrimSpace(cleaned)

	// Parse JSON - use interface{} for flexible number parsing (handles strings with commas)
	var raw struct {
		Proveedor     string      `json:"proveedor"`
		NIFProveedor  string      `json:"nif_proveedor"`
		Fecha         string      `json:"fecha"`
		NumeroFactura string      `json:"numero_factura"`
		Concepto      string      `json:"concepto"`
		BaseImponible interface{} `json:"base_imponible"`
		TipoIVA       interface{} `json:"tipo_iva"`
		CuotaIVA      interface{} `json:"cuota_iva"`
		Total         interface{} `json:"total"`
		TipoDocumento string      `json:"tipo_documento"`
	}

	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w - Response: %s", err, cleaned)
	}

	invoice := &models.ExtractedInvoice{
		Proveedor:     strings.TrimSpace(raw.Proveedor),
		NIFProveedor:  cleanNIF(raw.NIFProveedor),
		NumeroFactura: strings.TrimSpace(raw.NumeroFactura),
		Concepto:      strings.TrimSpace(raw.Concepto),
		TipoDocumento: raw.TipoDocumento,
		RawText:       ocrText,
		ProcessedAt:   time.Now(),
	}

	invoice.Fecha = parseDate(raw.Fecha)
	invoice.BaseImponible = parseDecimal(raw.BaseImponible)
	invoice.CuotaIVA = parseDecimal(raw.CuotaIVA)
	invoice.Total = parseDecimal(raw.Total)

	// Snap the extracted rate to a legal Spanish rate; anything else defaults
	// to the general rate and the classifier re-checks it downstream.
	rate := int(parseDecimal(raw.TipoIVA).IntPart())
	if models.ValidRate(rate) {
		invoice.TipoIVA = rate
	} else {
		invoice.TipoIVA = 21
	}

	invoice.Confidence = calculateConfidence(invoice)

	return invoice, nil
}

// Helper functions

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2006/01/02",
		"2006-01-02T15:04:05Z07:00",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseDecimal handles flexible number parsing from interface{}
// Supports: numbers, strings, strings with commas (e.g., "3.965,34" or "3,965.34")
func parseDecimal(v interface{}) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}

	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case string:
		if val == "" {
			return decimal.Zero
		}
		cleaned := strings.TrimSpace(val)
		// Spanish format uses comma as decimal separator and dot for thousands
		if strings.Contains(cleaned, ",") && strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		if val == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func cleanNIF(nif string) string {
	var result strings.Builder
	for _, r := range strings.ToUpper(nif) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// nifRegex validates Spanish tax IDs: DNI (8 digits + letter), NIE (X/Y/Z
// prefix) and CIF (letter + 7 digits + control digit or letter).
var nifRegex = regexp.MustCompile(`^(\d{8}[A-Z]|[XYZ]\d{7}[A-Z]|[A-HJNP-SUVW]\d{7}[0-9A-J])$`)

// calculateConfidence computes a confidence score based on extraction quality.
//
// Score breakdown (max 1.0):
//
//	Critical fields  — 0.20 each (0.60 total):
//	  proveedor present, total > 0, base imponible > 0
//	Important fields — 0.05 each (0.20 total):
//	  fecha, concepto, numero factura, NIF present
//	Bonus            — 0.10 each (0.20 total):
//	  NIF has valid format, total ≈ base + cuota (within 5%)
func calculateConfidence(inv *models.ExtractedInvoice) float64 {
	var score float64

	// --- Critical fields (0.20 each) ---

	if inv.Proveedor != "" {
		score += 0.20
	}
	if inv.Total.GreaterThan(decimal.Zero) {
		score += 0.20
	}
	if inv.BaseImponible.GreaterThan(decimal.Zero) {
		score += 0.20
	}

	// --- Important fields (0.05 each) ---

	if !inv.Fecha.IsZero() {
		score += 0.05
	}
	if inv.Concepto != "" {
		score += 0.05
	}
	if inv.NumeroFactura != "" {
		score += 0.05
	}
	if inv.NIFProveedor != "" {
		score += 0.05
	}

	// --- Bonus ---

	if nifRegex.MatchString(inv.NIFProveedor) {
		score += 0.10
	}

	// Total is consistent with base + cuota (within 5% tolerance)
	if inv.Total.GreaterThan(decimal.Zero) && inv.BaseImponible.GreaterThan(decimal.Zero) {
		expected := inv.BaseImponible.Add(inv.CuotaIVA)
		diff := inv.Total.Sub(expected).Abs()
		tolerance := inv.Total.Mul(decimal.NewFromFloat(0.05))
		if diff.LessThanOrEqual(tolerance) {
			score += 0.10
		}
	}

	if score > 1.0 {
		score = 1.0
	}

	return score
}

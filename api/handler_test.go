package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/autonomo-tax-service/internal/auth"
	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/rules"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	table := rules.Default()
	require.NoError(t, table.Validate())
	return NewHandler(&models.Config{}, table)
}

func authedRequest(method, target string, body *bytes.Buffer) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	claims := &auth.Claims{UserID: "user-1", Email: "ana@example.com"}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

func TestBuildDraft(t *testing.T) {
	h := testHandler(t)

	inv := &models.ExtractedInvoice{
		Proveedor:     "Repsol",
		NIFProveedor:  "A78374725",
		Fecha:         time.Date(2025, time.May, 12, 0, 0, 0, 0, time.UTC),
		NumeroFactura: "R-2025-100",
		Concepto:      "gasolina 95",
		BaseImponible: decimal.NewFromFloat(50),
		TipoIVA:       21,
		CuotaIVA:      decimal.NewFromFloat(10.0), // misread; correct is 10.50
		Total:         decimal.NewFromFloat(60.0),
		Confidence:    0.85,
	}

	draft := h.buildDraft(inv, nil, "vision", "documentos/user-1/doc.jpg")
	require.NotNil(t, draft)

	e := draft.Entry
	assert.Equal(t, models.TipoGasto, e.Tipo)
	assert.Equal(t, "Repsol", e.ProveedorCliente)
	assert.InDelta(t, 50.0, e.BaseImponible, 0.001)
	assert.Equal(t, 21, e.TipoIVA)
	assert.InDelta(t, 10.5, e.CuotaIVA, 0.001) // recalculated, not the extracted value
	assert.InDelta(t, 60.5, e.Total, 0.001)
	assert.Equal(t, "2025-Q2", e.Trimestre)
	assert.Equal(t, models.EstadoPendiente, e.Estado)
	assert.Equal(t, models.OrigenScanner, e.Origen)

	// Fuel is half deductible.
	assert.True(t, e.Deducible)
	assert.Equal(t, 50, e.PorcentajeDeduccion)
	assert.InDelta(t, 5.25, e.CuotaIVADeducible, 0.001)

	assert.True(t, draft.IVADiscrepancy)
	assert.InDelta(t, 10.0, draft.CuotaExtraida, 0.001)
	assert.False(t, draft.Exenta)
	assert.Equal(t, "vision", draft.ExtractionMethod)
	assert.InDelta(t, 0.85, draft.ExtractionConfidence, 0.001)
	assert.Equal(t, "documentos/user-1/doc.jpg", draft.DocumentURL)
	// The draft entry keeps the object path so a confirmed entry links
	// back to its scanned source.
	assert.Equal(t, "documentos/user-1/doc.jpg", e.DocumentoPath)
}

func TestBuildDraftExemptInvoice(t *testing.T) {
	h := testHandler(t)

	inv := &models.ExtractedInvoice{
		Proveedor:     "Clinica Dental",
		Concepto:      "limpieza dental",
		Fecha:         time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC),
		BaseImponible: decimal.NewFromFloat(80),
		TipoIVA:       0,
	}

	draft := h.buildDraft(inv, nil, "tesseract", "")
	assert.True(t, draft.Exenta)
	assert.Zero(t, draft.Entry.CuotaIVA)
	assert.Zero(t, draft.Entry.PorcentajeDeduccion)
	assert.False(t, draft.Entry.Deducible)
	assert.InDelta(t, 80.0, draft.Entry.Total, 0.001)
}

func TestReconcileAmountsEndpoint(t *testing.T) {
	h := testHandler(t)

	t.Run("discrepancy detected and corrected", func(t *testing.T) {
		body, _ := json.Marshal(ReconcileRequest{BaseImponible: 100, TipoIVA: 21, CuotaExtraida: 30})
		rec := httptest.NewRecorder()
		h.ReconcileAmounts(rec, httptest.NewRequest("POST", "/api/reconcile", bytes.NewBuffer(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.InDelta(t, 21.0, resp["cuota_correcta"].(float64), 0.001)
		assert.Equal(t, true, resp["discrepancy"])
	})

	t.Run("invalid rate rejected", func(t *testing.T) {
		body, _ := json.Marshal(ReconcileRequest{BaseImponible: 100, TipoIVA: 18, CuotaExtraida: 18})
		rec := httptest.NewRecorder()
		h.ReconcileAmounts(rec, httptest.NewRequest("POST", "/api/reconcile", bytes.NewBuffer(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ReconcileAmounts(rec, httptest.NewRequest("POST", "/api/reconcile", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClassifyEndpoint(t *testing.T) {
	h := testHandler(t)

	body, _ := json.Marshal(ClassifyRequest{
		Concepto:      "menu del dia",
		BaseImponible: 20,
	})
	rec := httptest.NewRecorder()
	h.Classify(rec, authedRequest("POST", "/api/classify", bytes.NewBuffer(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success     bool `json:"success"`
		RateVerdict struct {
			TipoIVA    int    `json:"tipo_iva"`
			Confidence string `json:"confidence"`
		} `json:"rate_verdict"`
		DeductibilityVerdict struct {
			Pct int `json:"porcentaje_deduccion"`
		} `json:"deductibility_verdict"`
		CuotaIVA          float64 `json:"cuota_iva"`
		CuotaIVADeducible float64 `json:"cuota_iva_deducible"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, 10, resp.RateVerdict.TipoIVA)
	assert.Equal(t, "high", resp.RateVerdict.Confidence)
	assert.Equal(t, 100, resp.DeductibilityVerdict.Pct)
	assert.InDelta(t, 2.0, resp.CuotaIVA, 0.001)
	assert.InDelta(t, 2.0, resp.CuotaIVADeducible, 0.001)
}

func TestClassifyRequiresAuth(t *testing.T) {
	h := testHandler(t)
	rec := httptest.NewRecorder()
	h.Classify(rec, httptest.NewRequest("POST", "/api/classify", bytes.NewBufferString("{}")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetEntryDocument(t *testing.T) {
	h := testHandler(t)

	t.Run("requires auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetEntryDocument(rec, httptest.NewRequest("GET", "/api/entries/abc/document", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unavailable without database", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetEntryDocument(rec, authedRequest("GET", "/api/entries/abc/document", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetDeadlineEndpoint(t *testing.T) {
	h := testHandler(t)

	t.Run("explicit quarter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetDeadline(rec, httptest.NewRequest("GET", "/api/deadline?trimestre=2099-Q1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Deadline struct {
				DeadlineDate string `json:"deadline_date"`
			} `json:"deadline"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2099-04-20", resp.Deadline.DeadlineDate)
	})

	t.Run("invalid quarter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetDeadline(rec, httptest.NewRequest("GET", "/api/deadline?trimestre=banana", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/facturaIA/autonomo-tax-service/internal/auth"
	"github.com/facturaIA/autonomo-tax-service/internal/db"
	"github.com/facturaIA/autonomo-tax-service/internal/finance"
	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/storage"
	"github.com/facturaIA/autonomo-tax-service/internal/tax"
)

// CreateEntryRequest wraps a ledger entry with the manual-form options. With
// auto_classify the server runs the rate classifier over the concept instead
// of trusting the submitted tipo_iva.
type CreateEntryRequest struct {
	models.LedgerEntry
	AutoClassify bool `json:"auto_classify"`
}

// CreateEntry inserts a manual ledger entry. Derived amounts (cuota, total,
// deductible share, trimestre) are always recomputed server-side so the
// stored row is internally consistent regardless of what the client sent.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry := req.LedgerEntry

	var profile *models.UserProfile
	if p, err := db.GetProfile(ctx, claims.UserID); err == nil {
		profile = p
	}

	var rateVerdict *tax.RateVerdict
	if req.AutoClassify || !models.ValidRate(entry.TipoIVA) {
		v := tax.ClassifyRate(entry.Concepto, entry.ProveedorCliente, h.rules)
		rateVerdict = &v
		entry.TipoIVA = v.TipoIVA
	}

	// Recompute derived amounts
	entry.BaseImponible = tax.Round2(entry.BaseImponible)
	entry.CuotaIVA = tax.Round2(entry.BaseImponible * float64(entry.TipoIVA) / 100)
	entry.Total = tax.Round2(entry.BaseImponible + entry.CuotaIVA)

	var deductVerdict *tax.DeductibilityVerdict
	if entry.Tipo == models.TipoGasto {
		v := tax.ClassifyDeductibility(entry.Concepto, entry.TipoIVA, entry.TipoIVA == 0, profile, h.rules)
		deductVerdict = &v
		entry.Deducible = v.Pct > 0
		entry.PorcentajeDeduccion = v.Pct
		entry.CuotaIVADeducible = tax.DeductibleCuota(entry.CuotaIVA, v.Pct)
		entry.AEATArticulo = v.Article
	} else {
		entry.Deducible = false
		entry.PorcentajeDeduccion = 0
		entry.CuotaIVADeducible = 0
	}

	if !entry.Fecha.IsZero() {
		entry.Trimestre = finance.QuarterOf(entry.Fecha)
	}
	if entry.Estado == "" {
		entry.Estado = models.EstadoPendiente
	}
	if entry.Origen == "" {
		entry.Origen = models.OrigenManual
	}

	if err := entry.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := db.SaveEntry(ctx, claims.UserID, &entry); err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save entry: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":               true,
		"entry":                 entry,
		"rate_verdict":          rateVerdict,
		"deductibility_verdict": deductVerdict,
	})
}

// GetEntries returns the user's full ledger, optionally filtered by quarter
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	if trimestre := r.URL.Query().Get("trimestre"); trimestre != "" {
		entries = filterByQuarter(entries, trimestre)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"entries": entries,
		"count":   len(entries),
	})
}

// GetEntry returns a single ledger entry
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	entryID := mux.Vars(r)["id"]
	entry, err := db.GetEntryByID(ctx, claims.UserID, entryID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("entry not found: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"entry":   entry,
	})
}

// UpdateEntry applies the correction-and-resave flow. When base or rate
// changes the cuota and deductible share are recomputed; partial stored
// inconsistencies are never allowed through.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	entryID := mux.Vars(r)["id"]

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	allowed := map[string]bool{
		"fecha":                true,
		"proveedor_cliente":    true,
		"nif":                  true,
		"concepto":             true,
		"numero_factura":       true,
		"base_imponible":       true,
		"tipo_iva":             true,
		"deducible":            true,
		"porcentaje_deduccion": true,
		"estado":               true,
	}
	filtered := make(map[string]interface{})
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		h.sendError(w, http.StatusBadRequest, "no valid fields to update")
		return
	}

	current, err := db.GetEntryByID(ctx, claims.UserID, entryID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("entry not found: %v", err))
		return
	}

	if err := normalizeEntryUpdates(current, filtered); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := db.UpdateEntry(ctx, claims.UserID, entryID, filtered); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to update entry")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "entry updated",
	})
}

// DeleteEntry removes a ledger entry and its stored document, if any
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	entryID := mux.Vars(r)["id"]
	entry, err := db.GetEntryByID(ctx, claims.UserID, entryID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("entry not found: %v", err))
		return
	}

	if err := db.DeleteEntry(ctx, claims.UserID, entryID); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}

	// Best effort: an orphaned object is tolerable, a dangling row is not.
	if entry.DocumentoPath != "" && storage.Client != nil {
		if err := storage.DeleteDocument(ctx, entry.DocumentoPath); err != nil {
			log.Printf("Warning: failed to delete document %s: %v", entry.DocumentoPath, err)
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "entry deleted",
	})
}

// GetEntryDocument returns a short-lived presigned URL for the scanned
// document behind an entry
func (h *Handler) GetEntryDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	entryID := mux.Vars(r)["id"]
	entry, err := db.GetEntryByID(ctx, claims.UserID, entryID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("entry not found: %v", err))
		return
	}
	if entry.DocumentoPath == "" {
		h.sendError(w, http.StatusNotFound, "entry has no stored document")
		return
	}
	if storage.Client == nil {
		h.sendError(w, http.StatusServiceUnavailable, "storage not available")
		return
	}

	url, err := storage.GetPresignedURL(ctx, entry.DocumentoPath)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to generate document URL: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"documento_path": entry.DocumentoPath,
		"url":            url,
	})
}

// ClassifyRequest is the stateless classification input.
type ClassifyRequest struct {
	Concepto         string  `json:"concepto"`
	ProveedorCliente string  `json:"proveedor_cliente"`
	BaseImponible    float64 `json:"base_imponible"`
}

// Classify runs both classifiers over a concept without touching the ledger.
// The manual entry form calls this as the user types.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var profile *models.UserProfile
	if db.Pool != nil {
		if p, err := db.GetProfile(ctx, claims.UserID); err == nil {
			profile = p
		}
	}

	rateVerdict := tax.ClassifyRate(req.Concepto, req.ProveedorCliente, h.rules)
	deductVerdict := tax.ClassifyDeductibility(req.Concepto, rateVerdict.TipoIVA, rateVerdict.Exempt, profile, h.rules)

	cuota := tax.Round2(req.BaseImponible * float64(rateVerdict.TipoIVA) / 100)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":               true,
		"rate_verdict":          rateVerdict,
		"deductibility_verdict": deductVerdict,
		"cuota_iva":             cuota,
		"cuota_iva_deducible":   tax.DeductibleCuota(cuota, deductVerdict.Pct),
	})
}

// ReconcileRequest is the extracted-amount reconciliation input.
type ReconcileRequest struct {
	BaseImponible float64 `json:"base_imponible"`
	TipoIVA       int     `json:"tipo_iva"`
	CuotaExtraida float64 `json:"cuota_extraida"`
}

// ReconcileAmounts checks an extracted cuota against the computed one
func (h *Handler) ReconcileAmounts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !models.ValidRate(req.TipoIVA) {
		h.sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid tipo_iva %d, must be 0, 4, 10 or 21", req.TipoIVA))
		return
	}

	corrected, discrepancy := tax.Reconcile(req.BaseImponible, req.TipoIVA, req.CuotaExtraida)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"cuota_correcta": corrected,
		"cuota_extraida": tax.Round2(req.CuotaExtraida),
		"discrepancy":    discrepancy,
		"tolerance":      tax.DiscrepancyTolerance,
	})
}

// GetSummary returns the quarterly summary for ?trimestre= (default: current)
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	trimestre := r.URL.Query().Get("trimestre")
	if trimestre == "" {
		trimestre = finance.QuarterOf(time.Now())
	}

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	valid, entryErrors := finance.Sanitize(entries)
	summary := finance.QuarterlySummary(valid, trimestre)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"trimestre":    trimestre,
		"summary":      summary,
		"tax_label":    h.taxLabel(ctx, claims.UserID),
		"entry_errors": entryErrors,
	})
}

// GetYTDSummary returns the year-to-date summary through ?through= quarters
func (h *Handler) GetYTDSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	now := time.Now()
	year := intParam(r, "year", now.Year())
	through := intParam(r, "through", (int(now.Month())-1)/3+1)
	if through < 1 || through > 4 {
		h.sendError(w, http.StatusBadRequest, "through must be between 1 and 4")
		return
	}

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	valid, entryErrors := finance.Sanitize(entries)
	summary := finance.YTDSummary(valid, year, through)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"year":         year,
		"through":      through,
		"summary":      summary,
		"entry_errors": entryErrors,
	})
}

// GetBreakdown returns the 12-month breakdown for ?year= (default: current)
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	year := intParam(r, "year", time.Now().Year())

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	valid, entryErrors := finance.Sanitize(entries)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"year":         year,
		"months":       finance.MonthlyBreakdown(valid, year),
		"entry_errors": entryErrors,
	})
}

// GetAging returns unpaid revenue entries bucketed by days outstanding
func (h *Handler) GetAging(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	valid, entryErrors := finance.Sanitize(entries)
	aged := finance.Aging(valid)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"aging":        aged,
		"count":        len(aged),
		"entry_errors": entryErrors,
	})
}

// GetModelo303 returns the quarterly VAT settlement projection
func (h *Handler) GetModelo303(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	trimestre := r.URL.Query().Get("trimestre")
	if trimestre == "" {
		trimestre = finance.QuarterOf(time.Now())
	}

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	valid, entryErrors := finance.Sanitize(entries)
	result := finance.Modelo303(valid, trimestre)

	response := map[string]interface{}{
		"success":      true,
		"trimestre":    trimestre,
		"modelo303":    result,
		"tax_label":    h.taxLabel(ctx, claims.UserID),
		"entry_errors": entryErrors,
	}
	if deadline, err := finance.NextDeadline(trimestre, time.Now()); err == nil {
		response["deadline"] = deadline
	}

	json.NewEncoder(w).Encode(response)
}

// GetModelo130 returns the quarterly income-tax prepayment projection.
// ?retenciones= carries the IRPF the user's clients already withheld YTD.
func (h *Handler) GetModelo130(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	now := time.Now()
	year := intParam(r, "year", now.Year())
	through := intParam(r, "through", (int(now.Month())-1)/3+1)
	if through < 1 || through > 4 {
		h.sendError(w, http.StatusBadRequest, "through must be between 1 and 4")
		return
	}
	retenciones := floatParam(r, "retenciones", 0)

	entries, err := db.GetEntries(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get entries: %v", err))
		return
	}

	valid, entryErrors := finance.Sanitize(entries)

	include := make(map[string]bool, through)
	for q := 1; q <= through; q++ {
		include[fmt.Sprintf("%d-Q%d", year, q)] = true
	}
	var ytd []models.LedgerEntry
	for _, e := range valid {
		if include[finance.EntryQuarter(e)] {
			ytd = append(ytd, e)
		}
	}

	result := finance.Modelo130(ytd, retenciones)

	response := map[string]interface{}{
		"success":      true,
		"year":         year,
		"through":      through,
		"modelo130":    result,
		"entry_errors": entryErrors,
	}
	if deadline, err := finance.NextDeadline(fmt.Sprintf("%d-Q%d", year, through), now); err == nil {
		response["deadline"] = deadline
	}

	json.NewEncoder(w).Encode(response)
}

// GetDeadline returns the next 303/130 filing deadline
func (h *Handler) GetDeadline(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	trimestre := r.URL.Query().Get("trimestre")
	if trimestre == "" {
		trimestre = finance.QuarterOf(time.Now())
	}

	deadline, err := finance.NextDeadline(trimestre, time.Now())
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"deadline": deadline,
	})
}

// GetCuotas returns the monthly Social Security quota for ?net_monthly= and,
// when ?annual_profit= is present, the progressive IRPF estimate
func (h *Handler) GetCuotas(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	netMonthly := floatParam(r, "net_monthly", 0)

	tarifaPlana := false
	tarifaPlanaActive := false
	if db.Pool != nil {
		if p, err := db.GetProfile(ctx, claims.UserID); err == nil {
			tarifaPlana = p.TarifaPlana
			tarifaPlanaActive = p.TarifaPlanaActive(time.Now())
		}
	}

	response := map[string]interface{}{
		"success":             true,
		"net_monthly":         netMonthly,
		"cuota_ss":            finance.CuotaSS(netMonthly, tarifaPlana, tarifaPlanaActive),
		"tarifa_plana_active": tarifaPlana && tarifaPlanaActive,
	}
	if r.URL.Query().Get("annual_profit") != "" {
		annualProfit := floatParam(r, "annual_profit", 0)
		response["annual_profit"] = annualProfit
		response["irpf_estimate"] = finance.IRPFEstimate(annualProfit)
	}

	json.NewEncoder(w).Encode(response)
}

// GetProfile returns the user's tax profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	profile, err := db.GetProfile(ctx, claims.UserID)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "profile not found")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"profile":   profile,
		"tax_label": profile.TaxLabel(),
	})
}

// PutProfile creates or replaces the user's tax profile
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile.UserID = claims.UserID

	switch profile.WorkLocation {
	case "", models.LocationCasa, models.LocationOficina, models.LocationMixto:
	default:
		h.sendError(w, http.StatusBadRequest, "work_location must be casa, oficina or mixto")
		return
	}
	if profile.HomeOfficePct < 0 || profile.HomeOfficePct > 100 {
		h.sendError(w, http.StatusBadRequest, "home_office_pct must be between 0 and 100")
		return
	}

	if err := db.UpsertProfile(ctx, &profile); err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save profile: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

// taxLabel resolves IVA vs IGIC from the profile, defaulting to IVA
func (h *Handler) taxLabel(ctx context.Context, userID string) string {
	if db.Pool == nil {
		return "IVA"
	}
	if p, err := db.GetProfile(ctx, userID); err == nil {
		return p.TaxLabel()
	}
	return "IVA"
}

// normalizeEntryUpdates recomputes the derived columns from the post-update
// base, rate and deduction percentage so a partial update can never leave a
// stored row internally inconsistent.
func normalizeEntryUpdates(current *models.LedgerEntry, filtered map[string]interface{}) error {
	base := current.BaseImponible
	if v, ok := filtered["base_imponible"]; ok {
		if f, ok := toFloat(v); ok {
			base = f
		}
	}
	rate := current.TipoIVA
	if v, ok := filtered["tipo_iva"]; ok {
		if f, ok := toFloat(v); ok {
			rate = int(f)
		}
	}
	if !models.ValidRate(rate) {
		return fmt.Errorf("invalid tipo_iva %d, must be 0, 4, 10 or 21", rate)
	}
	pct := current.PorcentajeDeduccion
	if v, ok := filtered["porcentaje_deduccion"]; ok {
		if f, ok := toFloat(v); ok {
			pct = int(f)
		}
	}
	if pct < 0 || pct > 100 {
		return fmt.Errorf("porcentaje_deduccion must be between 0 and 100")
	}

	cuota := tax.Round2(base * float64(rate) / 100)
	filtered["base_imponible"] = tax.Round2(base)
	filtered["tipo_iva"] = rate
	filtered["cuota_iva"] = cuota
	filtered["total"] = tax.Round2(base + cuota)
	if current.Tipo == models.TipoGasto {
		filtered["cuota_iva_deducible"] = tax.DeductibleCuota(cuota, pct)
		filtered["porcentaje_deduccion"] = pct
		// deducible always follows the percentage, as on create; the two
		// must never disagree in a stored row.
		filtered["deducible"] = pct > 0
	} else {
		delete(filtered, "deducible")
	}
	if v, ok := filtered["fecha"]; ok {
		if s, ok := v.(string); ok {
			if t, err := time.Parse("2006-01-02", s); err == nil {
				filtered["fecha"] = t
				filtered["trimestre"] = finance.QuarterOf(t)
			}
		}
	}
	return nil
}

// filterByQuarter keeps the entries whose derived quarter matches, the same
// key the aggregates use, so a listing never disagrees with the summary it
// sits next to.
func filterByQuarter(entries []models.LedgerEntry, trimestre string) []models.LedgerEntry {
	filtered := entries[:0]
	for _, e := range entries {
		if finance.EntryQuarter(e) == trimestre {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Query parameter helpers

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatParam(r *http.Request, name string, def float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

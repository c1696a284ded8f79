package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/facturaIA/autonomo-tax-service/internal/ai"
	"github.com/facturaIA/autonomo-tax-service/internal/auth"
	"github.com/facturaIA/autonomo-tax-service/internal/db"
	"github.com/facturaIA/autonomo-tax-service/internal/finance"
	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/ocr"
	"github.com/facturaIA/autonomo-tax-service/internal/rules"
	"github.com/facturaIA/autonomo-tax-service/internal/storage"
	"github.com/facturaIA/autonomo-tax-service/internal/tax"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for the ledger and document pipeline
type Handler struct {
	config *models.Config
	rules  *rules.Table
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, table *rules.Table) *Handler {
	return &Handler{
		config: config,
		rules:  table,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Document pipeline
	router.HandleFunc("/api/process-document", h.ProcessDocument).Methods("POST")

	// Ledger CRUD
	router.HandleFunc("/api/entries", h.CreateEntry).Methods("POST")
	router.HandleFunc("/api/entries", h.GetEntries).Methods("GET")
	router.HandleFunc("/api/entries/{id}", h.GetEntry).Methods("GET")
	router.HandleFunc("/api/entries/{id}", h.UpdateEntry).Methods("PUT")
	router.HandleFunc("/api/entries/{id}", h.DeleteEntry).Methods("DELETE")
	router.HandleFunc("/api/entries/{id}/document", h.GetEntryDocument).Methods("GET")

	// Classification (stateless)
	router.HandleFunc("/api/classify", h.Classify).Methods("POST")
	router.HandleFunc("/api/reconcile", h.ReconcileAmounts).Methods("POST")

	// Quarterly projections
	router.HandleFunc("/api/summary", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/summary/ytd", h.GetYTDSummary).Methods("GET")
	router.HandleFunc("/api/breakdown", h.GetBreakdown).Methods("GET")
	router.HandleFunc("/api/aging", h.GetAging).Methods("GET")
	router.HandleFunc("/api/modelo303", h.GetModelo303).Methods("GET")
	router.HandleFunc("/api/modelo130", h.GetModelo130).Methods("GET")
	router.HandleFunc("/api/deadline", h.GetDeadline).Methods("GET")
	router.HandleFunc("/api/cuotas", h.GetCuotas).Methods("GET")

	// Profile
	router.HandleFunc("/api/profile", h.GetProfile).Methods("GET")
	router.HandleFunc("/api/profile", h.PutProfile).Methods("PUT")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Timestamp   string            `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Memory      MemoryStats       `json:"memory"`
	Tesseract   ServiceStatus     `json:"tesseract"`
	ImageMagick ServiceStatus     `json:"imageMagick"`
	Database    ServiceStatus     `json:"database"`
	Storage     ServiceStatus     `json:"storage"`
	AI          map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := h.checkTesseract()
	imageMagickStatus := h.checkImageMagick()
	databaseStatus := h.checkDatabase()
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract:   tesseractStatus,
		ImageMagick: imageMagickStatus,
		Database:    databaseStatus,
		Storage:     storageStatus,
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
			"ocrEngine":       h.config.OCR.Engine,
		},
	}

	// OCR missing only degrades the scanner (vision mode still works); a
	// dead database takes the ledger down with it.
	if !databaseStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkTesseract verifies Tesseract OCR is available
func (h *Handler) checkTesseract() ServiceStatus {
	cmd := exec.Command("tesseract", "--version")
	output, err := cmd.CombinedOutput()

	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "tesseract not found or not executable",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}

	return ServiceStatus{
		Available: true,
		Version:   version,
	}
}

// checkImageMagick verifies ImageMagick is available
func (h *Handler) checkImageMagick() ServiceStatus {
	cmd := exec.Command("convert", "-version")
	output, err := cmd.CombinedOutput()

	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "imagemagick not found or not executable",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}

	return ServiceStatus{
		Available: true,
		Version:   version,
	}
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// ProcessDocument runs the scanned-document pipeline: upload, OCR or vision,
// AI extraction, reconciliation and classification. The result is a draft
// entry for the user to review; nothing is written to the ledger here.
func (h *Handler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	startTime := time.Now()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	err = r.ParseMultipartForm(MaxUploadSize)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	// Get file - accept both "file" and "image" field names
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' or 'image' field)")
			return
		}
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	aiProvider := r.FormValue("aiProvider")
	if aiProvider == "" {
		aiProvider = h.config.AI.DefaultProvider
	}

	// Default to vision mode for providers that read images directly
	useVisionModelParam := r.FormValue("useVisionModel")
	useVisionModel := useVisionModelParam == "true" || (useVisionModelParam == "" && (aiProvider == "gemini" || aiProvider == "openai"))

	model := r.FormValue("model")
	language := r.FormValue("language")
	if language == "" {
		language = h.config.OCR.Language
	}

	// Thermal receipts get the aggressive preprocessing pipeline
	isTicket := r.FormValue("documentType") == "ticket"

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	filename := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
		storage.GetFileExtension(contentType),
	)

	// Upload to MinIO (if configured)
	var documentURL string
	if storage.Client != nil {
		imageReader := bytes.NewReader(imageData)
		documentURL, err = storage.UploadDocument(
			ctx,
			claims.UserID,
			filename,
			imageReader,
			int64(len(imageData)),
			contentType,
		)
		if err != nil {
			// Log but don't fail - document storage is optional
			fmt.Printf("Warning: failed to upload document to MinIO: %v\n", err)
		}
	}

	invoice, ocrDuration, aiDuration, err := h.extractDocument(
		imageData,
		useVisionModel,
		isTicket,
		aiProvider,
		model,
		language,
	)

	totalDuration := time.Since(startTime).Seconds()

	if err != nil {
		response := models.ProcessResponse{
			Success:       false,
			Error:         err.Error(),
			TotalDuration: totalDuration,
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
		return
	}

	// Profile is optional: without one the home deduction condition simply
	// never applies.
	var profile *models.UserProfile
	if db.Pool != nil {
		if p, err := db.GetProfile(ctx, claims.UserID); err == nil {
			profile = p
		}
	}

	extractionMethod := "tesseract"
	if useVisionModel {
		extractionMethod = "vision"
	}

	draft := h.buildDraft(invoice, profile, extractionMethod, documentURL)

	response := models.ProcessResponse{
		Success:       true,
		Draft:         draft,
		OCRDuration:   ocrDuration,
		AIDuration:    aiDuration,
		TotalDuration: totalDuration,
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// buildDraft reconciles and classifies an extraction into a reviewable draft.
// The extracted rate drives the arithmetic; the rule verdicts are attached as
// the audit trail the review screen shows.
func (h *Handler) buildDraft(inv *models.ExtractedInvoice, profile *models.UserProfile, method, documentURL string) *models.DraftEntry {
	base := decimalToFloat64(inv.BaseImponible)
	claimed := decimalToFloat64(inv.CuotaIVA)

	rateVerdict := tax.ClassifyRate(inv.Concepto, inv.Proveedor, h.rules)
	corrected, discrepancy := tax.Reconcile(base, inv.TipoIVA, claimed)

	exempt := inv.TipoIVA == 0
	deduct := tax.ClassifyDeductibility(inv.Concepto, inv.TipoIVA, exempt, profile, h.rules)
	cuotaDeducible := tax.DeductibleCuota(corrected, deduct.Pct)

	entry := models.LedgerEntry{
		Fecha:               inv.Fecha,
		Tipo:                models.TipoGasto,
		ProveedorCliente:    inv.Proveedor,
		NIF:                 inv.NIFProveedor,
		Concepto:            inv.Concepto,
		NumeroFactura:       inv.NumeroFactura,
		BaseImponible:       tax.Round2(base),
		TipoIVA:             inv.TipoIVA,
		CuotaIVA:            corrected,
		Total:               tax.Round2(base + corrected),
		Deducible:           deduct.Pct > 0,
		PorcentajeDeduccion: deduct.Pct,
		CuotaIVADeducible:   cuotaDeducible,
		AEATArticulo:        deduct.Article,
		Estado:              models.EstadoPendiente,
		Origen:              models.OrigenScanner,
		DocumentoPath:       documentURL,
	}
	if !inv.Fecha.IsZero() {
		entry.Trimestre = finance.QuarterOf(inv.Fecha)
	}

	return &models.DraftEntry{
		Entry:                entry,
		IVADiscrepancy:       discrepancy,
		CuotaExtraida:        tax.Round2(claimed),
		IVALabel:             rateVerdict.Label,
		IVAConfidence:        rateVerdict.Confidence,
		Exenta:               exempt,
		MatchKeyword:         rateVerdict.MatchKeyword,
		DeduccionMotivo:      deduct.Justification,
		DeduccionArticulo:    deduct.Article,
		ExtractionMethod:     method,
		ExtractionConfidence: inv.Confidence,
		DocumentURL:          documentURL,
	}
}

// extractDocument performs the OCR/vision and AI extraction steps
func (h *Handler) extractDocument(
	imageData []byte,
	useVisionModel bool,
	isTicket bool,
	providerName string,
	modelName string,
	language string,
) (*models.ExtractedInvoice, float64, float64, error) {
	var ocrText string
	var ocrDuration float64
	var imageBase64 string

	if useVisionModel {
		// Vision models read the ORIGINAL color image better than the
		// grayscale preprocessed one
		imageBase64 = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)
	} else {
		ocrStart := time.Now()
		preprocessor := ocr.NewPreprocessor()
		var processedImage []byte
		var err error
		if isTicket {
			processedImage, err = preprocessor.PreprocessForTicket(imageData)
		} else {
			processedImage, err = preprocessor.PreprocessImageFromBytes(imageData)
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("image preprocessing failed: %w", err)
		}
		tesseract := ocr.NewTesseractOCR(language)
		text, _, err := tesseract.ExtractText(processedImage)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("OCR failed: %w", err)
		}
		ocrText = text
		ocrDuration = time.Since(ocrStart).Seconds()
	}

	provider, err := h.createProvider(providerName, modelName)
	if err != nil {
		return nil, ocrDuration, 0, err
	}

	extractor := ai.NewExtractor(provider)
	invoice, aiDuration, err := extractor.Extract(ocrText, imageBase64)
	if err != nil {
		return nil, ocrDuration, 0, fmt.Errorf("AI extraction failed: %w", err)
	}

	return invoice, ocrDuration, aiDuration, nil
}

// createProvider creates the appropriate AI provider
func (h *Handler) createProvider(providerName, modelName string) (ai.Provider, error) {
	switch providerName {
	case "openai":
		model := modelName
		if model == "" {
			model = h.config.AI.OpenAI.Model
		}
		return ai.NewOpenAIProvider(
			h.config.AI.OpenAI.APIKey,
			h.config.AI.OpenAI.BaseURL,
			model,
		), nil

	case "gemini":
		model := modelName
		if model == "" {
			model = h.config.AI.Gemini.Model
		}
		return ai.NewGeminiProvider(
			h.config.AI.Gemini.APIKey,
			model,
		), nil

	case "ollama":
		model := modelName
		if model == "" {
			model = h.config.AI.Ollama.Model
		}
		return ai.NewOllamaProvider(
			h.config.AI.Ollama.BaseURL,
			model,
		), nil

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// decimalToFloat64 converts decimal.Decimal to float64
func decimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/facturaIA/autonomo-tax-service/api"
	"github.com/facturaIA/autonomo-tax-service/internal/auth"
	"github.com/facturaIA/autonomo-tax-service/internal/db"
	"github.com/facturaIA/autonomo-tax-service/internal/models"
	"github.com/facturaIA/autonomo-tax-service/internal/rules"
	"github.com/facturaIA/autonomo-tax-service/internal/storage"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running in classify-only mode (no persistence)")
	} else {
		defer db.Close()
		log.Println("Database connection pool initialized")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Migrate(ctx); err != nil {
			log.Printf("Warning: Migration failed: %v", err)
		}
		cancel()
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Scanned documents will not be stored")
	} else {
		log.Println("MinIO storage initialized")
	}

	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load the tax rule table. A broken table means every classification
	// would be wrong, so this aborts instead of degrading.
	table, err := loadRules(config.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load tax rules: %v", err)
	}
	log.Printf("Tax rule table loaded: %d rate tiers, %d deductibility categories",
		len(table.Rates), len(table.Deduct))

	// Create API handler
	handler := api.NewHandler(config, table)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Autonomo Tax Service v%s on %s", api.Version, addr)
	log.Printf("OCR Engine: %s", config.OCR.Engine)
	log.Printf("Default AI Provider: %s", config.AI.DefaultProvider)
	log.Printf("Database: %v", db.Pool != nil)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login               - Authenticate", addr)
	log.Printf("  POST http://%s/api/process-document    - Scan invoice/receipt (requires JWT)", addr)
	log.Printf("  POST http://%s/api/entries             - Create ledger entry (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/entries             - List ledger entries (requires JWT)", addr)
	log.Printf("  POST http://%s/api/classify            - Classify a concept (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/summary             - Quarterly summary (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/modelo303           - Modelo 303 projection (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/modelo130           - Modelo 130 projection (requires JWT)", addr)
	log.Printf("  GET  http://%s/health                  - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadRules loads the rule table from the configured file, or the compiled-in
// 2025 table when no file is configured.
func loadRules(path string) (*rules.Table, error) {
	if path == "" {
		table := rules.Default()
		if err := table.Validate(); err != nil {
			return nil, err
		}
		return table, nil
	}
	return rules.Load(path)
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if rulesFile := os.Getenv("RULES_FILE"); rulesFile != "" {
		config.RulesFile = rulesFile
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.AI.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}

	return &config, nil
}

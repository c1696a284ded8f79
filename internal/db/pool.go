package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the global database connection pool
var Pool *pgxpool.Pool

// Init initializes the database connection pool
func Init() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Build from individual environment variables
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		user := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASSWORD")
		dbname := os.Getenv("DB_NAME")

		if host != "" && user != "" && dbname != "" {
			if port == "" {
				port = "5432"
			}
			databaseURL = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
				user, password, host, port, dbname)
		} else {
			// No database configured - classification still works, nothing persists
			log.Println("No database configuration found - running without persistence")
			return fmt.Errorf("no database configuration")
		}
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	Pool = pool
	log.Println("Database connection pool initialized successfully")
	return nil
}

// Migrate creates the ledger and profile tables when they do not exist yet.
func Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			usuario_id UUID NOT NULL,
			fecha DATE NOT NULL,
			tipo TEXT NOT NULL,
			proveedor_cliente TEXT NOT NULL DEFAULT '',
			nif TEXT NOT NULL DEFAULT '',
			concepto TEXT NOT NULL DEFAULT '',
			numero_factura TEXT NOT NULL DEFAULT '',
			base_imponible NUMERIC(12,2) NOT NULL DEFAULT 0,
			tipo_iva INT NOT NULL DEFAULT 21,
			cuota_iva NUMERIC(12,2) NOT NULL DEFAULT 0,
			total NUMERIC(12,2) NOT NULL DEFAULT 0,
			deducible BOOLEAN NOT NULL DEFAULT false,
			porcentaje_deduccion INT NOT NULL DEFAULT 0,
			cuota_iva_deducible NUMERIC(12,2) NOT NULL DEFAULT 0,
			aeat_articulo TEXT NOT NULL DEFAULT '',
			trimestre TEXT NOT NULL DEFAULT '',
			estado TEXT NOT NULL DEFAULT 'pendiente',
			origen TEXT NOT NULL DEFAULT 'manual',
			documento_path TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_usuario_trimestre
			ON ledger_entries (usuario_id, trimestre)`,
		`CREATE TABLE IF NOT EXISTS usuarios (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email TEXT NOT NULL UNIQUE,
			nombre TEXT NOT NULL DEFAULT '',
			rol TEXT NOT NULL DEFAULT 'autonomo',
			password_hash TEXT NOT NULL,
			activo BOOLEAN NOT NULL DEFAULT true,
			ultimo_acceso TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id UUID PRIMARY KEY,
			nombre TEXT NOT NULL DEFAULT '',
			actividad TEXT NOT NULL DEFAULT '',
			iae_code TEXT NOT NULL DEFAULT '',
			iva_regime TEXT NOT NULL DEFAULT 'general',
			irpf_retencion_pct INT NOT NULL DEFAULT 15,
			work_location TEXT NOT NULL DEFAULT 'oficina',
			home_office_pct INT NOT NULL DEFAULT 0,
			ss_bracket_monthly NUMERIC(10,2) NOT NULL DEFAULT 0,
			tarifa_plana BOOLEAN NOT NULL DEFAULT false,
			tarifa_plana_end_date DATE,
			alta_date DATE,
			autonomia TEXT NOT NULL DEFAULT 'peninsular',
			onboarding_complete BOOLEAN NOT NULL DEFAULT false
		)`,
	}
	for _, stmt := range statements {
		if _, err := Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection pool
func Close() {
	if Pool != nil {
		Pool.Close()
		log.Println("Database connection pool closed")
	}
}

package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/facturaIA/autonomo-tax-service/internal/models"
)

const entryColumns = `id, fecha, tipo, proveedor_cliente, nif, concepto, numero_factura,
	base_imponible, tipo_iva, cuota_iva, total, deducible, porcentaje_deduccion,
	cuota_iva_deducible, aeat_articulo, trimestre, estado, origen, documento_path,
	created_at, updated_at`

// SaveEntry inserts a classified ledger entry for a user. The entry must
// already carry its derived trimestre and reconciled amounts; this layer does
// not recompute anything.
func SaveEntry(ctx context.Context, userID string, e *models.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	query := `
		INSERT INTO ledger_entries (
			id, usuario_id, fecha, tipo, proveedor_cliente, nif, concepto,
			numero_factura, base_imponible, tipo_iva, cuota_iva, total,
			deducible, porcentaje_deduccion, cuota_iva_deducible,
			aeat_articulo, trimestre, estado, origen, documento_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at
	`

	err := Pool.QueryRow(ctx, query,
		e.ID, userID, e.Fecha, e.Tipo, e.ProveedorCliente, e.NIF, e.Concepto,
		e.NumeroFactura, e.BaseImponible, e.TipoIVA, e.CuotaIVA, e.Total,
		e.Deducible, e.PorcentajeDeduccion, e.CuotaIVADeducible,
		e.AEATArticulo, e.Trimestre, e.Estado, e.Origen, e.DocumentoPath,
	).Scan(&e.CreatedAt)

	return err
}

// GetEntries returns the user's full ledger snapshot ordered by date. The
// aggregators require a single consistent snapshot; this is the one read that
// provides it.
func GetEntries(ctx context.Context, userID string) ([]models.LedgerEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_entries
		WHERE usuario_id = $1
		ORDER BY fecha ASC, created_at ASC
	`, entryColumns)

	rows, err := Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetEntryByID retrieves a single entry owned by the user.
func GetEntryByID(ctx context.Context, userID, entryID string) (*models.LedgerEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_entries
		WHERE usuario_id = $1 AND id = $2
	`, entryColumns)

	row := Pool.QueryRow(ctx, query, userID, entryID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEntry updates entry fields via the explicit correction-and-resave
// flow. Only whitelisted columns can change; the caller re-runs the
// reconciliation before saving corrected amounts.
func UpdateEntry(ctx context.Context, userID, entryID string, updates map[string]interface{}) error {
	sets := []string{}
	args := []interface{}{}
	i := 1
	for key, value := range updates {
		sets = append(sets, fmt.Sprintf("%s = $%d", key, i))
		args = append(args, value)
		i++
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now())
	i++

	args = append(args, userID, entryID)

	query := fmt.Sprintf("UPDATE ledger_entries SET %s WHERE usuario_id = $%d AND id = $%d",
		strings.Join(sets, ", "), i, i+1)

	_, err := Pool.Exec(ctx, query, args...)
	return err
}

// DeleteEntry removes an entry
func DeleteEntry(ctx context.Context, userID, entryID string) error {
	_, err := Pool.Exec(ctx,
		"DELETE FROM ledger_entries WHERE usuario_id = $1 AND id = $2", userID, entryID)
	return err
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(
		&e.ID, &e.Fecha, &e.Tipo, &e.ProveedorCliente, &e.NIF, &e.Concepto,
		&e.NumeroFactura, &e.BaseImponible, &e.TipoIVA, &e.CuotaIVA, &e.Total,
		&e.Deducible, &e.PorcentajeDeduccion, &e.CuotaIVADeducible,
		&e.AEATArticulo, &e.Trimestre, &e.Estado, &e.Origen, &e.DocumentoPath,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

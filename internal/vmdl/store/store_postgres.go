package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"vacme/internal/vmdl/models"
)

// slowQueryThreshold is advisory only; a slower query is logged with its
// timing and result count but never aborted.
const slowQueryThreshold = 15 * time.Second

// PostgresStore reads upload candidates from and writes delivery
// confirmations to PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPostgres constructs a PostgreSQL-backed pending store.
func NewPostgres(db *sql.DB, log *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

const pendingByTerminSQL = `
	SELECT i.id, i.vaccination_date,
	       CASE WHEN d.termin1_id = i.termin_id THEN 1 ELSE 2 END AS serie,
	       i.vaccine_code, i.lot_number, i.administering_unit,
	       r.plz, r.foreign_address
	FROM impfung i
	JOIN impftermin t ON t.id = i.termin_id
	JOIN impfslot s ON s.id = t.slot_id
	JOIN impfdossier d ON %s
	JOIN registrierung r ON r.id = d.registrierung_id
	WHERE i.vmdl_reported_at IS NULL
	  AND NOT i.externally_administered
	  AND s.disease = $1
	LIMIT $2
`

const pendingByDossierEntrySQL = `
	SELECT i.id, i.vaccination_date, e.impffolge_nr AS serie,
	       i.vaccine_code, i.lot_number, i.administering_unit,
	       r.plz, r.foreign_address
	FROM impfung i
	JOIN impfdossiereintrag e ON e.impfung_id = i.id
	JOIN impfdossier d ON d.id = e.impfdossier_id
	JOIN registrierung r ON r.id = d.registrierung_id
	WHERE i.vmdl_reported_at IS NULL
	  AND NOT i.externally_administered
	  AND d.disease = $1
	  AND (i.termin_id IS NULL
	       OR (d.termin1_id IS DISTINCT FROM i.termin_id AND d.termin2_id IS DISTINCT FROM i.termin_id))
	LIMIT $2
`

func (s *PostgresStore) PendingByTermin(ctx context.Context, disease models.Disease, q TerminQuery, limit int) ([]models.PendingRecord, error) {
	var join string
	switch q {
	case TerminOne:
		join = "d.termin1_id = t.id"
	case TerminTwo:
		join = "d.termin2_id = t.id"
	default:
		join = "(d.termin1_id = t.id OR d.termin2_id = t.id)"
	}
	query := fmt.Sprintf(pendingByTerminSQL, join)

	records, err := s.queryPending(ctx, "pending_by_termin", disease, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pending by termin: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) PendingByDossierEntry(ctx context.Context, disease models.Disease, limit int) ([]models.PendingRecord, error) {
	records, err := s.queryPending(ctx, "pending_by_dossier_entry", disease, pendingByDossierEntrySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("pending by dossier entry: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) queryPending(ctx context.Context, name string, disease models.Disease, query string, limit int) ([]models.PendingRecord, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, string(disease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PendingRecord
	for rows.Next() {
		var rec models.PendingRecord
		var plz sql.NullString
		if err := rows.Scan(
			&rec.ImpfungID,
			&rec.VaccinationDate,
			&rec.Serie,
			&rec.VaccineCode,
			&rec.LotNumber,
			&rec.AdministeringUnit,
			&plz,
			&rec.ForeignAddress,
		); err != nil {
			return nil, err
		}
		rec.PLZ = plz.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if elapsed := time.Since(start); elapsed > slowQueryThreshold {
		s.log.Warn("slow pending-upload query",
			zap.String("query", name),
			zap.String("disease", string(disease)),
			zap.Duration("elapsed", elapsed),
			zap.Int("limit", limit),
			zap.Int("rows", len(records)))
	}
	return records, nil
}

// MarkReported stamps all ids with the one capture-time timestamp in a fresh
// transaction. Re-marking an already marked record is a no-op in effect, so a
// crash between upload and confirmation only costs a duplicate resend.
func (s *PostgresStore) MarkReported(ctx context.Context, ids []uuid.UUID, reportedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark reported: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE impfung SET vmdl_reported_at = $1 WHERE id = ANY($2)`,
		reportedAt, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("mark reported: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark reported: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) WasEverSent(ctx context.Context, impfungID uuid.UUID) (bool, error) {
	var sent bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM impfung WHERE id = $1 AND vmdl_reported_at IS NOT NULL)`,
		impfungID,
	).Scan(&sent)
	if err != nil {
		return false, fmt.Errorf("was ever sent: %w", err)
	}
	if sent {
		return true, nil
	}

	// The live timestamp may have been cleared by a correction to force a
	// resend; any historical revision with the timestamp set still counts.
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM impfung_aud WHERE id = $1 AND vmdl_reported_at IS NOT NULL)`,
		impfungID,
	).Scan(&sent)
	if err != nil {
		return false, fmt.Errorf("was ever sent: audit history: %w", err)
	}
	return sent, nil
}

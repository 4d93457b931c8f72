package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*AuditLogRepo)(nil)

// AuditLogRepo implementación sobre PostgreSQL. La tabla es append-only: este
// adaptador no expone UPDATE ni DELETE, y sequence_number lleva constraint UNIQUE
// para que dos appends concurrentes no compartan número.
type AuditLogRepo struct {
	q Querier
}

// NewAuditLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditLogRepository(q Querier) *AuditLogRepo {
	return &AuditLogRepo{q: q}
}

// GetLast devuelve la última entrada por número de secuencia, o nil si la
// bitácora está vacía.
func (r *AuditLogRepo) GetLast(ctx context.Context) (*entity.AuditEntry, error) {
	query := `
		SELECT sequence_number, action, entity_type, entity_id, old_values, new_values,
		       actor_id, created_at, previous_entry_hash, entry_hash
		FROM audit_log ORDER BY sequence_number DESC LIMIT 1`
	e, err := scanAuditEntry(r.q.QueryRow(ctx, query))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last audit entry: %w", err)
	}
	return e, nil
}

// Append inserta la entrada ya sellada. Una colisión de sequence_number (dos
// appends leyeron el mismo GetLast) sube como domain.ErrDuplicate para que el
// caller relea la punta de la cadena y reintente.
func (r *AuditLogRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	oldJSON, err := json.Marshal(e.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newJSON, err := json.Marshal(e.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}
	query := `
		INSERT INTO audit_log (sequence_number, action, entity_type, entity_id, old_values, new_values,
		                       actor_id, created_at, previous_entry_hash, entry_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.Exec(ctx, query,
		e.SequenceNumber, e.Action, e.EntityType, e.EntityID, oldJSON, newJSON,
		e.ActorID, e.CreatedAt, e.PreviousEntryHash, e.EntryHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("secuencia %d de bitácora ya ocupada: %w", e.SequenceNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListRange devuelve las entradas con secuencia en [fromSeq, toSeq], ordenadas.
func (r *AuditLogRepo) ListRange(ctx context.Context, fromSeq, toSeq int64) ([]*entity.AuditEntry, error) {
	query := `
		SELECT sequence_number, action, entity_type, entity_id, old_values, new_values,
		       actor_id, created_at, previous_entry_hash, entry_hash
		FROM audit_log
		WHERE sequence_number BETWEEN $1 AND $2
		ORDER BY sequence_number`
	rows, err := r.q.Query(ctx, query, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var list []*entity.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// rowScanner cubre pgx.Row y pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (*entity.AuditEntry, error) {
	var e entity.AuditEntry
	var oldJSON, newJSON []byte
	if err := row.Scan(
		&e.SequenceNumber, &e.Action, &e.EntityType, &e.EntityID, &oldJSON, &newJSON,
		&e.ActorID, &e.CreatedAt, &e.PreviousEntryHash, &e.EntryHash,
	); err != nil {
		return nil, err
	}
	if len(oldJSON) > 0 {
		if err := json.Unmarshal(oldJSON, &e.OldValues); err != nil {
			return nil, fmt.Errorf("unmarshal old_values: %w", err)
		}
	}
	if len(newJSON) > 0 {
		if err := json.Unmarshal(newJSON, &e.NewValues); err != nil {
			return nil, fmt.Errorf("unmarshal new_values: %w", err)
		}
	}
	return &e, nil
}

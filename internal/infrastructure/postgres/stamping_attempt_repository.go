package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

var _ repository.StampingAttemptRepository = (*StampingAttemptRepo)(nil)

// StampingAttemptRepo implementación sobre PostgreSQL (usable con pool o tx).
//
// La unicidad "a lo sumo un intento sin resolver por (cfdi_id, receipt_version)"
// la garantiza un índice único parcial:
//
//	CREATE UNIQUE INDEX stamping_attempts_unresolved_uq
//	    ON stamping_attempts (cfdi_id, receipt_version)
//	 WHERE outcome = 'PENDING';
type StampingAttemptRepo struct {
	q Querier
}

// NewStampingAttemptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStampingAttemptRepository(q Querier) *StampingAttemptRepo {
	return &StampingAttemptRepo{q: q}
}

// CreateIfNoneUnresolved inserta el intento; una violación del índice único
// parcial significa que otro worker ganó la carrera y se reporta created=false.
func (r *StampingAttemptRepo) CreateIfNoneUnresolved(ctx context.Context, attempt *entity.StampingAttempt) (bool, error) {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stamping_attempts (id, cfdi_id, receipt_version, worker_id, outcome, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		attempt.ID, attempt.CFDIID, attempt.ReceiptVersion, attempt.WorkerID,
		attempt.Outcome, attempt.StartedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert stamping attempt: %w", err)
	}
	return true, nil
}

// GetUnresolved devuelve el intento pendiente para (cfdiID, receiptVersion), o nil.
func (r *StampingAttemptRepo) GetUnresolved(ctx context.Context, cfdiID string, receiptVersion int) (*entity.StampingAttempt, error) {
	query := `
		SELECT id, cfdi_id, receipt_version, worker_id, outcome,
		       COALESCE(error_type, ''), COALESCE(error_message, ''), COALESCE(pac_response, ''),
		       started_at, resolved_at
		FROM stamping_attempts
		WHERE cfdi_id = $1 AND receipt_version = $2 AND outcome = $3`
	var a entity.StampingAttempt
	err := r.q.QueryRow(ctx, query, cfdiID, receiptVersion, entity.AttemptOutcomePending).Scan(
		&a.ID, &a.CFDIID, &a.ReceiptVersion, &a.WorkerID, &a.Outcome,
		&a.ErrorType, &a.ErrorMessage, &a.PACResponse,
		&a.StartedAt, &a.ResolvedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get unresolved attempt: %w", err)
	}
	return &a, nil
}

// Resolve marca el intento con su resultado. El WHERE sobre PENDING lo hace
// idempotente: resolver un intento ya resuelto devuelve resolved=false sin error.
func (r *StampingAttemptRepo) Resolve(ctx context.Context, attemptID, outcome, errorType, errorMessage, pacResponse string) (bool, error) {
	query := `
		UPDATE stamping_attempts
		   SET outcome = $2, error_type = NULLIF($3, ''), error_message = NULLIF($4, ''),
		       pac_response = NULLIF($5, ''), resolved_at = now()
		 WHERE id = $1 AND outcome = $6`
	cmd, err := r.q.Exec(ctx, query,
		attemptID, outcome, errorType, errorMessage, pacResponse, entity.AttemptOutcomePending,
	)
	if err != nil {
		return false, fmt.Errorf("resolve stamping attempt: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkExpired resuelve como FAILURE un intento pendiente huérfano (worker caído).
func (r *StampingAttemptRepo) MarkExpired(ctx context.Context, attemptID string) error {
	query := `
		UPDATE stamping_attempts
		   SET outcome = $2, error_message = 'candado vencido (worker caído)', resolved_at = now()
		 WHERE id = $1 AND outcome = $3`
	if _, err := r.q.Exec(ctx, query, attemptID, entity.AttemptOutcomeFailure, entity.AttemptOutcomePending); err != nil {
		return fmt.Errorf("mark attempt expired: %w", err)
	}
	return nil
}

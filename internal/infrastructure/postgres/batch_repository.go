package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo implementación sobre PostgreSQL (usable con pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// Create persiste un lote de timbrado.
func (r *BatchRepo) Create(ctx context.Context, b *entity.StampingBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stamping_batches (id, company_id, total, completed, failed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`
	_, err := r.q.Exec(ctx, query, b.ID, b.CompanyID, b.Total, b.Completed, b.Failed)
	if err != nil {
		return fmt.Errorf("insert stamping batch: %w", err)
	}
	return nil
}

// GetByID obtiene un lote por ID, o nil si no existe.
func (r *BatchRepo) GetByID(ctx context.Context, id string) (*entity.StampingBatch, error) {
	query := `
		SELECT id, company_id, total, completed, failed, created_at, updated_at
		FROM stamping_batches WHERE id = $1`
	var b entity.StampingBatch
	err := r.q.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.CompanyID, &b.Total, &b.Completed, &b.Failed, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stamping batch: %w", err)
	}
	return &b, nil
}

// IncrementCompleted incrementa el contador de completados de forma atómica
// (los workers resuelven documentos hermanos en paralelo).
func (r *BatchRepo) IncrementCompleted(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE stamping_batches SET completed = completed + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment batch completed: %w", err)
	}
	return nil
}

// IncrementFailed incrementa el contador de fallados de forma atómica.
func (r *BatchRepo) IncrementFailed(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx,
		`UPDATE stamping_batches SET failed = failed + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment batch failed: %w", err)
	}
	return nil
}

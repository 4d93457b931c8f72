package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

// Asegura que TxRunner implementa stamping.StampingTxRunner.
var _ stamping.StampingTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunStamping inicia una transacción con los repos que muta el cierre terminal
// de un trabajo de timbrado (CFDI + línea de nómina) y hace Commit o Rollback.
// El estado terminal del comprobante y el de su línea quedan visibles juntos o
// no quedan visibles.
func (r *TxRunner) RunStamping(ctx context.Context, fn func(
	cfdiRepo repository.CFDIRepository,
	lineRepo repository.PayrollLineItemRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cfdiRepo := NewCFDIRepository(tx)
	lineRepo := NewPayrollLineItemRepository(tx)

	if err := fn(cfdiRepo, lineRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

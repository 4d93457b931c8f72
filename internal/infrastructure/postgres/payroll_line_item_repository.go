package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

var _ repository.PayrollLineItemRepository = (*PayrollLineItemRepo)(nil)

// PayrollLineItemRepo implementación sobre PostgreSQL (usable con pool o tx).
type PayrollLineItemRepo struct {
	q Querier
}

// NewPayrollLineItemRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPayrollLineItemRepository(q Querier) *PayrollLineItemRepo {
	return &PayrollLineItemRepo{q: q}
}

// Create persiste una línea de nómina calculada.
func (r *PayrollLineItemRepo) Create(ctx context.Context, item *entity.PayrollLineItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	query := `
		INSERT INTO payroll_line_items (id, period_id, employee_id, gross_total, deductions_total, net_total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.PeriodID, item.EmployeeID,
		item.GrossTotal, item.DeductionsTotal, item.NetTotal, item.Status,
	)
	if err != nil {
		return fmt.Errorf("insert payroll line item: %w", err)
	}
	return nil
}

// GetByID obtiene una línea por ID, o nil si no existe.
func (r *PayrollLineItemRepo) GetByID(ctx context.Context, id string) (*entity.PayrollLineItem, error) {
	query := `
		SELECT id, period_id, employee_id, gross_total, deductions_total, net_total, status, created_at, updated_at
		FROM payroll_line_items WHERE id = $1`
	var item entity.PayrollLineItem
	err := r.q.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.PeriodID, &item.EmployeeID,
		&item.GrossTotal, &item.DeductionsTotal, &item.NetTotal, &item.Status,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payroll line item: %w", err)
	}
	return &item, nil
}

// UpdateStatus cambia el estado de timbrado de la línea.
func (r *PayrollLineItemRepo) UpdateStatus(ctx context.Context, id, status string) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE payroll_line_items SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update line item status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("línea de nómina %s no encontrada", id)
	}
	return nil
}

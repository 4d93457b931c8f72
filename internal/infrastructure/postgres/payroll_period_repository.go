package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

var _ repository.PayrollPeriodRepository = (*PayrollPeriodRepo)(nil)

// PayrollPeriodRepo implementación sobre PostgreSQL (usable con pool o tx).
type PayrollPeriodRepo struct {
	q Querier
}

// NewPayrollPeriodRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPayrollPeriodRepository(q Querier) *PayrollPeriodRepo {
	return &PayrollPeriodRepo{q: q}
}

// Create persiste un período de nómina.
func (r *PayrollPeriodRepo) Create(ctx context.Context, p *entity.PayrollPeriod) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	query := `
		INSERT INTO payroll_periods (id, company_id, name, start_date, end_date, status, gross_total, deductions_total, net_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.Name, p.StartDate, p.EndDate, p.Status,
		p.GrossTotal, p.DeductionsTotal, p.NetTotal,
	)
	if err != nil {
		return fmt.Errorf("insert payroll period: %w", err)
	}
	return nil
}

// GetByID obtiene un período por ID, o nil si no existe.
func (r *PayrollPeriodRepo) GetByID(ctx context.Context, id string) (*entity.PayrollPeriod, error) {
	query := `
		SELECT id, company_id, name, start_date, end_date, status,
		       gross_total, deductions_total, net_total, approved_at, created_at, updated_at
		FROM payroll_periods WHERE id = $1`
	var p entity.PayrollPeriod
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
		&p.GrossTotal, &p.DeductionsTotal, &p.NetTotal, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payroll period: %w", err)
	}
	return &p, nil
}

// CountItemsNotStamped cuenta las líneas del período con estado distinto de STAMP_OK.
func (r *PayrollPeriodRepo) CountItemsNotStamped(ctx context.Context, periodID string) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM payroll_line_items WHERE period_id = $1 AND status <> $2`,
		periodID, entity.LineItemStatusStampOK,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending line items: %w", err)
	}
	return n, nil
}

// MarkProcessing fija el período en PROCESSING al arrancar su timbrado masivo.
// Acepta re-kickoff idempotente de un período que ya está en PROCESSING.
func (r *PayrollPeriodRepo) MarkProcessing(ctx context.Context, periodID string) (bool, error) {
	cmd, err := r.q.Exec(ctx,
		`UPDATE payroll_periods SET status = $2, updated_at = now()
		  WHERE id = $1 AND status IN ($3, $2)`,
		periodID, entity.PeriodStatusProcessing, entity.PeriodStatusCalculated,
	)
	if err != nil {
		return false, fmt.Errorf("mark period processing: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// TransitionIfProcessing pasa el período de PROCESSING al estado dado con un
// update condicional. Dos finalizadores concurrentes no pueden ganar ambos: el
// WHERE sobre PROCESSING deja exactamente una fila afectada para el ganador.
func (r *PayrollPeriodRepo) TransitionIfProcessing(ctx context.Context, periodID, toStatus string) (bool, error) {
	cmd, err := r.q.Exec(ctx,
		`UPDATE payroll_periods SET status = $2, approved_at = now(), updated_at = now()
		  WHERE id = $1 AND status = $3`,
		periodID, toStatus, entity.PeriodStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("transition payroll period: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ListStuckProcessing lista períodos en PROCESSING sin líneas por timbrar pero
// con al menos una en STAMP_ERROR: nunca van a auto-aprobarse y requieren
// intervención manual del operador.
func (r *PayrollPeriodRepo) ListStuckProcessing(ctx context.Context, companyID string) ([]*entity.PayrollPeriod, error) {
	query := `
		SELECT p.id, p.company_id, p.name, p.start_date, p.end_date, p.status,
		       p.gross_total, p.deductions_total, p.net_total, p.approved_at, p.created_at, p.updated_at
		  FROM payroll_periods p
		 WHERE p.company_id = $1
		   AND p.status = $2
		   AND NOT EXISTS (
		         SELECT 1 FROM payroll_line_items li
		          WHERE li.period_id = p.id AND li.status NOT IN ($3, $4))
		   AND EXISTS (
		         SELECT 1 FROM payroll_line_items li
		          WHERE li.period_id = p.id AND li.status = $4)
		 ORDER BY p.end_date DESC`
	rows, err := r.q.Query(ctx, query,
		companyID, entity.PeriodStatusProcessing,
		entity.LineItemStatusStampOK, entity.LineItemStatusStampError,
	)
	if err != nil {
		return nil, fmt.Errorf("list stuck periods: %w", err)
	}
	defer rows.Close()

	var list []*entity.PayrollPeriod
	for rows.Next() {
		var p entity.PayrollPeriod
		if err := rows.Scan(
			&p.ID, &p.CompanyID, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
			&p.GrossTotal, &p.DeductionsTotal, &p.NetTotal, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payroll period: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

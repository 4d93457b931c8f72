package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

var _ repository.CFDIRepository = (*CFDIRepo)(nil)

// CFDIRepo implementación sobre PostgreSQL (usable con pool o tx).
type CFDIRepo struct {
	q Querier
}

// NewCFDIRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCFDIRepository(q Querier) *CFDIRepo {
	return &CFDIRepo{q: q}
}

// Create persiste un comprobante recién calculado (estado PENDING).
func (r *CFDIRepo) Create(ctx context.Context, c *entity.CFDI) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO cfdis (id, company_id, employee_id, line_item_id, status, source_document, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.CompanyID, c.EmployeeID, c.LineItemID, c.Status, c.SourceDocument, c.AttemptCount,
	)
	if err != nil {
		return fmt.Errorf("insert cfdi: %w", err)
	}
	return nil
}

// GetByID obtiene un comprobante por ID, o nil si no existe.
func (r *CFDIRepo) GetByID(ctx context.Context, id string) (*entity.CFDI, error) {
	query := `
		SELECT id, company_id, employee_id, line_item_id, status, folio, stamped_at,
		       source_document, stamped_document, last_pac_response, error_message,
		       attempt_count, created_at, updated_at
		FROM cfdis WHERE id = $1`
	var c entity.CFDI
	var folio, stampedDoc, pacResponse, errMsg *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.CompanyID, &c.EmployeeID, &c.LineItemID, &c.Status, &folio, &c.StampedAt,
		&c.SourceDocument, &stampedDoc, &pacResponse, &errMsg,
		&c.AttemptCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cfdi: %w", err)
	}
	c.Folio = deref(folio)
	c.StampedDocument = deref(stampedDoc)
	c.LastPACResponse = deref(pacResponse)
	c.ErrorMessage = deref(errMsg)
	return &c, nil
}

// ListPendingByPeriod devuelve los CFDIs en PENDING asociados a líneas del período.
func (r *CFDIRepo) ListPendingByPeriod(ctx context.Context, periodID string) ([]*entity.CFDI, error) {
	query := `
		SELECT c.id, c.company_id, c.employee_id, c.line_item_id, c.status, c.source_document,
		       c.attempt_count, c.created_at, c.updated_at
		  FROM cfdis c
		  JOIN payroll_line_items li ON li.id = c.line_item_id
		 WHERE li.period_id = $1 AND c.status = $2
		 ORDER BY c.created_at`
	rows, err := r.q.Query(ctx, query, periodID, entity.CFDIStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending cfdis: %w", err)
	}
	defer rows.Close()

	var list []*entity.CFDI
	for rows.Next() {
		var c entity.CFDI
		if err := rows.Scan(
			&c.ID, &c.CompanyID, &c.EmployeeID, &c.LineItemID, &c.Status, &c.SourceDocument,
			&c.AttemptCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cfdi: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// MarkStamped fija el estado terminal STAMPED con folio, fecha y documento
// timbrado. El WHERE sobre PENDING hace la transición condicional: un folio ya
// asignado jamás se sobreescribe. Devuelve false si no hubo transición.
func (r *CFDIRepo) MarkStamped(ctx context.Context, id, folio string, stampedAt time.Time, stampedDocument, pacResponse string) (bool, error) {
	query := `
		UPDATE cfdis
		   SET status = $2, folio = $3, stamped_at = $4, stamped_document = $5,
		       last_pac_response = $6, error_message = NULL, updated_at = now()
		 WHERE id = $1 AND status = $7`
	cmd, err := r.q.Exec(ctx, query,
		id, entity.CFDIStatusStamped, folio, stampedAt, stampedDocument, pacResponse,
		entity.CFDIStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark cfdi stamped: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkError fija el estado terminal ERROR. Condicional sobre PENDING igual que
// MarkStamped.
func (r *CFDIRepo) MarkError(ctx context.Context, id, errorMessage string, attemptCount int) (bool, error) {
	query := `
		UPDATE cfdis
		   SET status = $2, error_message = $3, attempt_count = $4, updated_at = now()
		 WHERE id = $1 AND status = $5`
	cmd, err := r.q.Exec(ctx, query,
		id, entity.CFDIStatusError, errorMessage, attemptCount, entity.CFDIStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark cfdi error: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package repository

import (
	"context"
	"time"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// CFDIRepository acceso a comprobantes fiscales de nómina.
type CFDIRepository interface {
	Create(ctx context.Context, c *entity.CFDI) error
	GetByID(ctx context.Context, id string) (*entity.CFDI, error)

	// ListPendingByPeriod devuelve los CFDIs en PENDING asociados a líneas del
	// período dado (para el encolado masivo).
	ListPendingByPeriod(ctx context.Context, periodID string) ([]*entity.CFDI, error)

	// MarkStamped fija el estado terminal STAMPED con folio, fecha y documento
	// timbrado. Condicional: solo aplica si el documento sigue en PENDING, para
	// que el folio jamás se reasigne. Devuelve false si no hubo transición.
	MarkStamped(ctx context.Context, id, folio string, stampedAt time.Time, stampedDocument, pacResponse string) (bool, error)

	// MarkError fija el estado terminal ERROR con el mensaje clasificado y el
	// conteo de intentos. Condicional sobre PENDING igual que MarkStamped.
	MarkError(ctx context.Context, id, errorMessage string, attemptCount int) (bool, error)
}

package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// PayrollPeriodRepository acceso a períodos de nómina.
type PayrollPeriodRepository interface {
	Create(ctx context.Context, p *entity.PayrollPeriod) error
	GetByID(ctx context.Context, id string) (*entity.PayrollPeriod, error)

	// CountItemsNotStamped cuenta las líneas del período con estado ≠ STAMP_OK.
	CountItemsNotStamped(ctx context.Context, periodID string) (int64, error)

	// MarkProcessing fija el período en PROCESSING al arrancar su timbrado masivo.
	// Condicional: solo desde CALCULATED o si ya está en PROCESSING (re-kickoff
	// idempotente). Devuelve false si el período está en otro estado.
	MarkProcessing(ctx context.Context, periodID string) (bool, error)

	// TransitionIfProcessing pasa el período de PROCESSING al estado dado con un
	// update condicional (solo si sigue en PROCESSING). Devuelve true si esta
	// llamada realizó la transición; una carrera perdida devuelve false, no error.
	TransitionIfProcessing(ctx context.Context, periodID, toStatus string) (bool, error)

	// ListStuckProcessing lista períodos en PROCESSING cuyas líneas pendientes
	// están todas en STAMP_ERROR: nunca van a auto-aprobarse y requieren
	// intervención manual del operador.
	ListStuckProcessing(ctx context.Context, companyID string) ([]*entity.PayrollPeriod, error)
}

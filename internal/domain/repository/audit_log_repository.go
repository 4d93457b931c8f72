package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// AuditLogRepository acceso append-only a la bitácora encadenada.
type AuditLogRepository interface {
	// GetLast devuelve la última entrada por número de secuencia descendente,
	// o nil si la bitácora está vacía.
	GetLast(ctx context.Context) (*entity.AuditEntry, error)

	// Append inserta la entrada ya sellada (con hash). Nunca actualiza ni borra.
	Append(ctx context.Context, e *entity.AuditEntry) error

	// ListRange devuelve las entradas con secuencia en [fromSeq, toSeq], ordenadas.
	ListRange(ctx context.Context, fromSeq, toSeq int64) ([]*entity.AuditEntry, error)
}

package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// StampingAttemptRepository acceso a intentos/candados de timbrado.
type StampingAttemptRepository interface {
	// CreateIfNoneUnresolved inserta el intento solo si no existe otro sin
	// resolver para el mismo (CFDIID, ReceiptVersion). La unicidad la garantiza
	// el store (índice único parcial); una violación se reporta como created=false,
	// nunca como inserción silenciosa bajo ambigüedad.
	CreateIfNoneUnresolved(ctx context.Context, attempt *entity.StampingAttempt) (created bool, err error)

	// GetUnresolved devuelve el intento pendiente para (cfdiID, receiptVersion),
	// o nil si no hay ninguno.
	GetUnresolved(ctx context.Context, cfdiID string, receiptVersion int) (*entity.StampingAttempt, error)

	// Resolve marca el intento con su resultado. Idempotente: resolver un intento
	// ya resuelto devuelve resolved=false sin error.
	Resolve(ctx context.Context, attemptID, outcome, errorType, errorMessage, pacResponse string) (resolved bool, err error)

	// MarkExpired resuelve como FAILURE un intento pendiente huérfano (worker caído).
	MarkExpired(ctx context.Context, attemptID string) error
}

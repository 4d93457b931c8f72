package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// BatchRepository acceso a lotes de timbrado.
type BatchRepository interface {
	Create(ctx context.Context, b *entity.StampingBatch) error
	GetByID(ctx context.Context, id string) (*entity.StampingBatch, error)

	// IncrementCompleted / IncrementFailed incrementan el contador de forma
	// atómica en el store (los workers resuelven documentos en paralelo).
	IncrementCompleted(ctx context.Context, id string) error
	IncrementFailed(ctx context.Context, id string) error
}

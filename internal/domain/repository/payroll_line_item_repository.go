package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// PayrollLineItemRepository acceso a líneas de nómina.
type PayrollLineItemRepository interface {
	Create(ctx context.Context, item *entity.PayrollLineItem) error
	GetByID(ctx context.Context, id string) (*entity.PayrollLineItem, error)

	// UpdateStatus cambia el estado de timbrado de la línea. Solo el orquestador
	// lo invoca, dentro de la misma transacción que finaliza el CFDI asociado.
	UpdateStatus(ctx context.Context, id, status string) error
}

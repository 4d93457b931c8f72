package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// CompanyRepository acceso a empresas/patrones.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}

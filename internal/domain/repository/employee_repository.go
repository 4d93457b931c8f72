package repository

import (
	"context"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
)

// EmployeeRepository acceso a empleados.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Employee, error)
}

package entity

import "time"

// Employee representa un empleado activo de una empresa.
type Employee struct {
	ID        string
	CompanyID string
	FullName  string
	RFC       string // RFC del trabajador (persona física: 13 caracteres)
	CURP      string
	NSS       string // número de seguridad social IMSS
	Email     string
	Status    string // active, inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}

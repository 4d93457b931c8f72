package entity

import "time"

// Estados del CFDI de nómina frente al PAC.
const (
	CFDIStatusPending = "PENDING" // Creado al calcular la línea de nómina, aún sin timbrar
	CFDIStatusStamped = "STAMPED" // Timbrado por el PAC; folio fiscal asignado (terminal)
	CFDIStatusError   = "ERROR"   // Falla permanente; requiere intervención del operador (terminal)
)

// CFDI representa el comprobante fiscal de nómina de una línea de nómina.
//
// Invariante: una vez en STAMPED el folio fiscal (UUID asignado por el PAC) es
// inmutable; un comprobante timbrado jamás se re-emite con otro folio para la
// misma transacción. Las transiciones a estado terminal ocurren exactamente una
// vez y solo dentro del pipeline de timbrado.
type CFDI struct {
	ID              string
	CompanyID       string
	EmployeeID      string
	LineItemID      string // línea de nómina asociada (1 a 1 con la versión activa)
	Status          string
	Folio           string     // UUID fiscal asignado por el PAC al timbrar
	StampedAt       *time.Time // momento del timbrado según el PAC
	SourceDocument  string     // documento origen sin timbrar (pre-CFDI sellado por la empresa)
	StampedDocument string     // CFDI timbrado devuelto por el PAC
	LastPACResponse string     // último payload de respuesta del PAC (éxito o rechazo)
	ErrorMessage    string     // mensaje clasificado de la última falla permanente
	AttemptCount    int        // intentos acumulados reportados por la cola
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsTerminal indica si el comprobante ya alcanzó un estado final.
func (c *CFDI) IsTerminal() bool {
	return c.Status == CFDIStatusStamped || c.Status == CFDIStatusError
}

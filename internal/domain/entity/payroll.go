package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la línea de nómina respecto al timbrado.
const (
	LineItemStatusCalculated = "CALCULATED"  // Cálculo terminado; CFDI en PENDING
	LineItemStatusStampOK    = "STAMP_OK"    // CFDI timbrado correctamente
	LineItemStatusStampError = "STAMP_ERROR" // Falla permanente de timbrado
	LineItemStatusPaid       = "PAID"        // Pagada (fuera del pipeline de timbrado)
)

// Estados del período de nómina.
const (
	PeriodStatusDraft      = "DRAFT"
	PeriodStatusProcessing = "PROCESSING" // Esperando que todas sus líneas queden timbradas
	PeriodStatusCalculated = "CALCULATED"
	PeriodStatusApproved   = "APPROVED" // Todas las líneas en STAMP_OK
	PeriodStatusPaid       = "PAID"
	PeriodStatusClosed     = "CLOSED"
)

// PayrollLineItem representa el recibo calculado de un empleado dentro de un período.
// Su estado de timbrado solo lo muta el orquestador, en la misma transacción que
// finaliza el estado del CFDI asociado.
type PayrollLineItem struct {
	ID              string
	PeriodID        string
	EmployeeID      string
	GrossTotal      decimal.Decimal // percepciones
	DeductionsTotal decimal.Decimal // deducciones
	NetTotal        decimal.Decimal // neto a pagar
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PayrollPeriod representa un período de nómina de una empresa.
//
// Invariante: la transición PROCESSING → APPROVED solo es válida cuando el
// conteo de líneas con estado distinto de STAMP_OK en el período es cero.
type PayrollPeriod struct {
	ID              string
	CompanyID       string
	Name            string // ej: "2026-08 Q2"
	StartDate       time.Time
	EndDate         time.Time
	Status          string
	GrossTotal      decimal.Decimal
	DeductionsTotal decimal.Decimal
	NetTotal        decimal.Decimal
	ApprovedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

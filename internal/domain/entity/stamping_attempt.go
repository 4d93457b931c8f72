package entity

import "time"

// Resultados de un intento de timbrado.
const (
	AttemptOutcomePending = "PENDING" // Intento en curso; funciona como candado exclusivo
	AttemptOutcomeSuccess = "SUCCESS"
	AttemptOutcomeFailure = "FAILURE"
)

// StampingAttempt registra un intento de timbrado de un CFDI y actúa como candado
// distribuido: convierte "¿alguien está timbrando este documento?" en un hecho
// consultable y libre de carreras.
//
// Invariante: a lo sumo un intento sin resolver por (CFDIID, ReceiptVersion).
// Es de vida corta; el estado terminal del propio CFDI lo supersede una vez resuelto.
type StampingAttempt struct {
	ID             string
	CFDIID         string
	ReceiptVersion int    // versión del recibo que se intenta timbrar
	WorkerID       string // identidad del worker que tomó el candado
	Outcome        string
	ErrorType      string // taxonomía de la falla (vacío en éxito o pendiente)
	ErrorMessage   string
	PACResponse    string // payload del PAC registrado al resolver
	StartedAt      time.Time
	ResolvedAt     *time.Time
}

// IsResolved indica si el intento ya fue liberado con un resultado.
func (a *StampingAttempt) IsResolved() bool {
	return a.Outcome != AttemptOutcomePending
}

// ExpiredAt indica si el candado debe considerarse vencido en el instante dado.
// Un intento pendiente más viejo que ttl se trata como huérfano (worker caído).
func (a *StampingAttempt) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return !a.IsResolved() && now.Sub(a.StartedAt) > ttl
}

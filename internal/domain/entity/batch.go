package entity

import "time"

// StampingBatch acumula el avance de un lote de timbrado (ej: todos los recibos
// de un período encolados juntos). Los contadores se incrementan conforme cada
// documento hermano llega a un resultado terminal.
type StampingBatch struct {
	ID        string
	CompanyID string
	Total     int
	Completed int
	Failed    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Done indica si todos los documentos del lote ya resolvieron.
func (b *StampingBatch) Done() bool {
	return b.Completed+b.Failed >= b.Total
}

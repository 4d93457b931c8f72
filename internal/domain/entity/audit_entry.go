package entity

import "time"

// AuditGenesisHash es el valor de PreviousEntryHash de la primera entrada de la cadena.
const AuditGenesisHash = "GENESIS"

// AuditEntry es una entrada de la bitácora encadenada por hash (a prueba de alteración).
//
// Invariante: EntryHash = SHA256(serialización canónica de los campos de la entrada,
// incluyendo PreviousEntryHash). La cadena 1..N es válida si y solo si cada entrada
// recomputa su hash correctamente y su PreviousEntryHash coincide con el EntryHash
// almacenado de la entrada anterior. Las entradas son append-only: nunca se mutan
// ni se borran.
type AuditEntry struct {
	SequenceNumber    int64 // estrictamente creciente, global
	Action            string
	EntityType        string
	EntityID          string
	OldValues         map[string]any
	NewValues         map[string]any
	ActorID           string
	CreatedAt         time.Time
	PreviousEntryHash string
	EntryHash         string
}

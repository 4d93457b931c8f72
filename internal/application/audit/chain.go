package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

// Chain bitácora encadenada por hash: primitiva pura de append/verify, sin
// semántica de reintentos. Los callers la invocan una vez por cambio de estado
// significativo; la verificación es un diagnóstico aparte que reporta —nunca
// corrige— una rotura.
type Chain struct {
	repo    repository.AuditLogRepository
	nowFunc func() time.Time
}

// NewChain construye la cadena sobre el repositorio append-only.
func NewChain(repo repository.AuditLogRepository) *Chain {
	return &Chain{repo: repo, nowFunc: time.Now}
}

// hashedFields serialización canónica de una entrada para el hash. El orden de
// los campos es parte del contrato: cambiarlo invalida toda cadena existente.
type hashedFields struct {
	Actor             string         `json:"actor"`
	Action            string         `json:"action"`
	EntityType        string         `json:"entityType"`
	EntityID          string         `json:"entityId"`
	OldValues         map[string]any `json:"oldValues"`
	NewValues         map[string]any `json:"newValues"`
	CreatedAt         string         `json:"createdAt"`
	PreviousEntryHash string         `json:"previousEntryHash"`
	SequenceNumber    int64          `json:"sequenceNumber"`
}

// computeHash SHA-256 hex del JSON canónico de la entrada. encoding/json ordena
// las llaves de los mapas, así que la serialización es determinista.
func computeHash(e *entity.AuditEntry) (string, error) {
	payload, err := json.Marshal(hashedFields{
		Actor:             e.ActorID,
		Action:            e.Action,
		EntityType:        e.EntityType,
		EntityID:          e.EntityID,
		OldValues:         e.OldValues,
		NewValues:         e.NewValues,
		CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
		PreviousEntryHash: e.PreviousEntryHash,
		SequenceNumber:    e.SequenceNumber,
	})
	if err != nil {
		return "", fmt.Errorf("serializar entrada de bitácora: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// maxAppendRetries acota el bucle leer-sellar-anexar de Record cuando varios
// workers compiten por el mismo número de secuencia.
const maxAppendRetries = 8

// Record sella y persiste una nueva entrada ligada a la última de la cadena.
// GetLast → Append no es atómico: si otro worker ocupó la secuencia entre ambas
// llamadas (el repo lo reporta como domain.ErrDuplicate), se relee la punta y se
// vuelve a sellar. Implementa stamping.AuditTrail.
func (c *Chain) Record(ctx context.Context, actorID, action, entityType, entityID string, oldValues, newValues map[string]any) (*entity.AuditEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		last, err := c.repo.GetLast(ctx)
		if err != nil {
			return nil, fmt.Errorf("leer última entrada de bitácora: %w", err)
		}

		prevHash := entity.AuditGenesisHash
		var seq int64 = 1
		if last != nil {
			prevHash = last.EntryHash
			seq = last.SequenceNumber + 1
		}

		e := &entity.AuditEntry{
			SequenceNumber:    seq,
			Action:            action,
			EntityType:        entityType,
			EntityID:          entityID,
			OldValues:         oldValues,
			NewValues:         newValues,
			ActorID:           actorID,
			CreatedAt:         c.nowFunc().UTC(),
			PreviousEntryHash: prevHash,
		}
		hash, err := computeHash(e)
		if err != nil {
			return nil, err
		}
		e.EntryHash = hash

		err = c.repo.Append(ctx, e)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, fmt.Errorf("anexar entrada %d de bitácora: %w", seq, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("bitácora en disputa tras %d intentos: %w", maxAppendRetries, lastErr)
}

// Tipos de hallazgo de VerifyChain.
const (
	FindingHashMismatch = "hash_mismatch" // el hash recomputado no coincide con el almacenado
	FindingChainBreak   = "chain_break"   // previousEntryHash no liga con la entrada anterior
	FindingSequenceGap  = "sequence_gap"  // numeración no contigua
)

// Finding rotura detectada en una entrada concreta.
type Finding struct {
	SequenceNumber int64  `json:"sequenceNumber"`
	Kind           string `json:"kind"`
	Detail         string `json:"detail"`
}

// VerifyReport resultado de la verificación de un rango de la cadena.
type VerifyReport struct {
	Valid    bool      `json:"valid"`
	Checked  int       `json:"checked"`
	Findings []Finding `json:"findings,omitempty"`
}

// VerifyChain recomputa cada hash del rango [fromSeq, toSeq] y confirma (a) que
// coincide con el almacenado, (b) que cada previousEntryHash liga con la entrada
// anterior y (c) que la numeración es contigua. Cualquier desajuste se reporta
// como hallazgo de alteración; nada se corrige en silencio.
func (c *Chain) VerifyChain(ctx context.Context, fromSeq, toSeq int64) (*VerifyReport, error) {
	entries, err := c.repo.ListRange(ctx, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("leer rango de bitácora [%d,%d]: %w", fromSeq, toSeq, err)
	}

	report := &VerifyReport{Valid: true, Checked: len(entries)}
	addFinding := func(seq int64, kind, detail string) {
		report.Valid = false
		report.Findings = append(report.Findings, Finding{SequenceNumber: seq, Kind: kind, Detail: detail})
	}

	var prev *entity.AuditEntry
	for _, e := range entries {
		recomputed, err := computeHash(e)
		if err != nil {
			return nil, err
		}
		if recomputed != e.EntryHash {
			addFinding(e.SequenceNumber, FindingHashMismatch,
				fmt.Sprintf("hash almacenado %s, recomputado %s", e.EntryHash, recomputed))
		}
		if prev != nil {
			if e.SequenceNumber != prev.SequenceNumber+1 {
				addFinding(e.SequenceNumber, FindingSequenceGap,
					fmt.Sprintf("se esperaba secuencia %d", prev.SequenceNumber+1))
			}
			if e.PreviousEntryHash != prev.EntryHash {
				addFinding(e.SequenceNumber, FindingChainBreak,
					fmt.Sprintf("previousEntryHash no coincide con el hash de la entrada %d", prev.SequenceNumber))
			}
		} else if e.SequenceNumber == 1 && e.PreviousEntryHash != entity.AuditGenesisHash {
			addFinding(1, FindingChainBreak, "la primera entrada debe ligar a GENESIS")
		}
		prev = e
	}
	return report, nil
}

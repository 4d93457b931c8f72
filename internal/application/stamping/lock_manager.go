package stamping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// Razones de rechazo de AcquireLock.
const (
	ReasonAlreadyStamped = "ALREADY_STAMPED"
	ReasonInProgress     = "IN_PROGRESS"
)

// AcquireResult resultado de un intento de adquisición del candado de timbrado.
type AcquireResult struct {
	Acquired      bool
	Reason        string // ALREADY_STAMPED | IN_PROGRESS cuando Acquired es false
	AttemptID     string // id del intento creado cuando Acquired es true
	ExistingFolio string // folio ya emitido cuando Reason es ALREADY_STAMPED
}

// LockManager garantiza a lo sumo un intento de timbrado en vuelo por documento
// en todo el sistema. Antes de cualquier llamada remota detecta "ya timbrado" y
// "en curso en otro worker" como hechos consultables, nunca como carreras.
type LockManager struct {
	cfdis    repository.CFDIRepository
	attempts repository.StampingAttemptRepository
	lockTTL  time.Duration // vencimiento de candados huérfanos
	nowFunc  func() time.Time
	log      *logger.Logger
}

// NewLockManager construye el manager. lockTTL acota la vida de un candado cuyo
// worker murió sin liberar.
func NewLockManager(
	cfdis repository.CFDIRepository,
	attempts repository.StampingAttemptRepository,
	lockTTL time.Duration,
	log *logger.Logger,
) *LockManager {
	return &LockManager{
		cfdis:    cfdis,
		attempts: attempts,
		lockTTL:  lockTTL,
		nowFunc:  time.Now,
		log:      log,
	}
}

// AcquireLock intenta tomar el candado exclusivo para (documentID, receiptVersion).
//
// En una operación lógica: (a) si el documento ya está en STAMPED rehúsa con
// ALREADY_STAMPED y devuelve el folio existente; (b) si hay un intento sin
// resolver y no vencido rehúsa con IN_PROGRESS; (c) si no, crea el intento y
// devuelve acquired=true. Si el store falla, el error sube tal cual: la
// adquisición jamás tiene éxito silencioso bajo ambigüedad.
func (m *LockManager) AcquireLock(ctx context.Context, documentID string, receiptVersion int, workerID string) (*AcquireResult, error) {
	doc, err := m.cfdis.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("leer CFDI %s: %w", documentID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("CFDI %s: %w", documentID, domain.ErrNotFound)
	}
	if doc.Status == entity.CFDIStatusStamped {
		return &AcquireResult{Reason: ReasonAlreadyStamped, ExistingFolio: doc.Folio}, nil
	}

	now := m.nowFunc()
	if existing, err := m.attempts.GetUnresolved(ctx, documentID, receiptVersion); err != nil {
		return nil, fmt.Errorf("consultar intento activo de %s: %w", documentID, err)
	} else if existing != nil {
		if !existing.ExpiredAt(now, m.lockTTL) {
			return &AcquireResult{Reason: ReasonInProgress}, nil
		}
		// Candado huérfano: resolverlo como falla y continuar con uno nuevo.
		m.log.Warn().
			Str("document_id", documentID).
			Str("attempt_id", existing.ID).
			Time("started_at", existing.StartedAt).
			Msg("candado de timbrado vencido, se marca como huérfano")
		if err := m.attempts.MarkExpired(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("marcar candado vencido de %s: %w", documentID, err)
		}
	}

	attempt := &entity.StampingAttempt{
		ID:             uuid.New().String(),
		CFDIID:         documentID,
		ReceiptVersion: receiptVersion,
		WorkerID:       workerID,
		Outcome:        entity.AttemptOutcomePending,
		StartedAt:      now,
	}
	created, err := m.attempts.CreateIfNoneUnresolved(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("crear intento de timbrado de %s: %w", documentID, err)
	}
	if !created {
		// Otro worker ganó la carrera entre el GetUnresolved y el insert.
		return &AcquireResult{Reason: ReasonInProgress}, nil
	}
	return &AcquireResult{Acquired: true, AttemptID: attempt.ID}, nil
}

// ReleaseLock resuelve el intento con su resultado. Idempotente: liberar un
// intento ya resuelto es un no-op, no un error. No muta el documento.
func (m *LockManager) ReleaseLock(ctx context.Context, documentID, attemptID, outcome string, errType ErrorType, errMessage, pacResponse string) error {
	resolved, err := m.attempts.Resolve(ctx, attemptID, outcome, string(errType), errMessage, pacResponse)
	if err != nil {
		return fmt.Errorf("liberar candado %s de %s: %w", attemptID, documentID, err)
	}
	if !resolved {
		m.log.Debug().
			Str("document_id", documentID).
			Str("attempt_id", attemptID).
			Msg("candado ya estaba liberado")
	}
	return nil
}

package stamping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// StampJob payload de un trabajo de timbrado entregado por la cola.
type StampJob struct {
	DocumentID     string `json:"documentId"`
	LineItemID     string `json:"lineItemId,omitempty"`
	PeriodID       string `json:"periodId,omitempty"`
	ReceiptVersion int    `json:"receiptVersion,omitempty"`
	CompanyID      string `json:"companyId,omitempty"`
	ActorID        string `json:"actorId,omitempty"`
	Priority       int    `json:"priority,omitempty"`
	BatchID        string `json:"batchId,omitempty"`
}

// StampJobResult resultado de un trabajo de timbrado.
type StampJobResult struct {
	Success         bool      `json:"success"`
	DocumentID      string    `json:"documentId"`
	Folio           string    `json:"folio,omitempty"`
	ErrorType       ErrorType `json:"errorType,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	AttemptNumber   int       `json:"attemptNumber"`
	PeriodFinalized bool      `json:"periodFinalized,omitempty"`
}

// Orchestrator es la máquina de estados central del timbrado:
//
//	pre-check → candado → llamada al PAC → commit transaccional → liberar candado
//	→ finalización de período → resultado
//
// Cada trabajo corre completo en un worker; trabajos de documentos distintos
// corren en paralelo y el lock manager serializa por documento. El orquestador
// no reintenta internamente: una falla reintentable sube a la cola (backoff
// exponencial centralizado ahí) y una permanente se persiste como terminal.
type Orchestrator struct {
	cfdis     repository.CFDIRepository
	lines     repository.PayrollLineItemRepository
	companies repository.CompanyRepository
	batches   repository.BatchRepository
	locks     *LockManager
	client    StampingClient
	creds     CredentialsProvider
	tx        StampingTxRunner
	finalizer *PeriodFinalizer
	audit     AuditTrail
	publisher Publisher
	workerID  string
	actorID   string // actor de bitácora para entradas generadas por el pipeline
	log       *logger.Logger
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
func NewOrchestrator(
	cfdis repository.CFDIRepository,
	lines repository.PayrollLineItemRepository,
	companies repository.CompanyRepository,
	batches repository.BatchRepository,
	locks *LockManager,
	client StampingClient,
	creds CredentialsProvider,
	tx StampingTxRunner,
	finalizer *PeriodFinalizer,
	audit AuditTrail,
	publisher Publisher,
	workerID, actorID string,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfdis:     cfdis,
		lines:     lines,
		companies: companies,
		batches:   batches,
		locks:     locks,
		client:    client,
		creds:     creds,
		tx:        tx,
		finalizer: finalizer,
		audit:     audit,
		publisher: publisher,
		workerID:  workerID,
		actorID:   actorID,
		log:       log,
	}
}

// Process ejecuta un trabajo de timbrado. attemptNumber es 1-based (attemptsMade
// de la cola + 1); lastAttempt indica que la cola agotó sus reintentos.
//
// Contrato de errores: un error devuelto que sea RetryableError pide a la cola
// reprogramar con backoff; un resultado con Success=false y error nil es una
// falla permanente ya persistida (el trabajo termina ahí).
func (o *Orchestrator) Process(ctx context.Context, job StampJob, attemptNumber int, lastAttempt bool) (*StampJobResult, error) {
	log := o.log.With().
		Str("document_id", job.DocumentID).
		Int("attempt", attemptNumber).
		Logger()

	// ── 1. Pre-check: corto circuito idempotente ──────────────────────────────
	// Un documento ya terminal no toca ni el lock manager ni el PAC, incluso
	// tras crash-and-redeliver de la cola.
	doc, err := o.cfdis.GetByID(ctx, job.DocumentID)
	if err != nil {
		return nil, Retry(ErrorTypeUnknown, fmt.Errorf("leer CFDI %s: %w", job.DocumentID, err))
	}
	if doc == nil {
		return nil, fmt.Errorf("CFDI %s: %w", job.DocumentID, domain.ErrNotFound)
	}
	switch doc.Status {
	case entity.CFDIStatusStamped:
		log.Info().Str("folio", doc.Folio).Msg("documento ya timbrado, corto circuito")
		// Un período timbrado-pero-no-finalizado no debe quedarse atorado.
		finalized, ferr := o.finalizer.FinalizeIfComplete(ctx, doc.ID, job.LineItemID, job.PeriodID)
		if ferr != nil {
			log.Error().Err(ferr).Msg("falla evaluando finalización de período en corto circuito")
		}
		return &StampJobResult{
			Success:         true,
			DocumentID:      doc.ID,
			Folio:           doc.Folio,
			AttemptNumber:   attemptNumber,
			PeriodFinalized: finalized,
		}, nil
	case entity.CFDIStatusError:
		log.Info().Msg("documento en ERROR permanente, no se reintenta")
		return &StampJobResult{
			Success:       false,
			DocumentID:    doc.ID,
			ErrorMessage:  doc.ErrorMessage,
			AttemptNumber: attemptNumber,
		}, nil
	}

	// ── 2. Candado exclusivo por documento ────────────────────────────────────
	acq, err := o.locks.AcquireLock(ctx, doc.ID, job.ReceiptVersion, o.workerID)
	if err != nil {
		return nil, Retry(ErrorTypeUnknown, fmt.Errorf("adquirir candado: %w", err))
	}
	if !acq.Acquired {
		switch acq.Reason {
		case ReasonAlreadyStamped:
			// Éxito con el folio ya emitido, nunca una falla.
			return &StampJobResult{
				Success:       true,
				DocumentID:    doc.ID,
				Folio:         acq.ExistingFolio,
				AttemptNumber: attemptNumber,
			}, nil
		case ReasonInProgress:
			// Otro worker lo está atendiendo; la cola reprograma.
			return nil, Retry(ErrorTypeUnknown, ErrInProgress)
		default:
			return nil, fmt.Errorf("candado rechazado para %s: %s", doc.ID, acq.Reason)
		}
	}

	// ── 3. Preparar insumos del timbrado ──────────────────────────────────────
	companyID := job.CompanyID
	if companyID == "" {
		companyID = doc.CompanyID
	}
	creds, err := o.creds.GetSigningCredentials(ctx, companyID)
	if err != nil {
		// Solo el material defectuoso (RFC inválido, CSD ausente o indescifrable,
		// empresa inexistente) es terminal; una falla leyendo el almacén es
		// transitoria y la cola reintenta con backoff.
		permanent := errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound)
		errType := ErrorTypeCertificate
		if !permanent {
			errType = ErrorTypeUnknown
		}
		relErr := o.locks.ReleaseLock(ctx, doc.ID, acq.AttemptID, entity.AttemptOutcomeFailure, errType, err.Error(), "")
		if relErr != nil {
			log.Error().Err(relErr).Msg("falla liberando candado tras error de credenciales")
		}
		if permanent {
			return o.persistPermanentFailure(ctx, log, doc, job, attemptNumber, Classification{ErrorTypeCertificate, false}, err.Error())
		}
		return nil, Retry(ErrorTypeUnknown, fmt.Errorf("credenciales de la empresa %s: %w", companyID, err))
	}

	// ── 4. Llamada al PAC (un solo intento bloqueante) ────────────────────────
	result, stampErr := o.client.Stamp(ctx, doc.SourceDocument, creds)
	if stampErr != nil {
		return o.handleStampFailure(ctx, log, doc, job, acq.AttemptID, attemptNumber, lastAttempt, stampErr)
	}

	// ── 5. Commit transaccional del éxito ─────────────────────────────────────
	lineItemID := job.LineItemID
	if lineItemID == "" {
		lineItemID = doc.LineItemID
	}
	err = o.tx.RunStamping(ctx, func(
		cfdiRepo repository.CFDIRepository,
		lineRepo repository.PayrollLineItemRepository,
	) error {
		ok, err := cfdiRepo.MarkStamped(ctx, doc.ID, result.Folio, result.StampedAt, result.SignedResult, result.PACResponse)
		if err != nil {
			return err
		}
		if !ok {
			// El candado garantiza exclusividad; si aun así no transicionó, el
			// documento cambió por fuera del pipeline. Abortamos el commit.
			return fmt.Errorf("CFDI %s ya no está en PENDING: %w", doc.ID, domain.ErrConflict)
		}
		if lineItemID != "" {
			return lineRepo.UpdateStatus(ctx, lineItemID, entity.LineItemStatusStampOK)
		}
		return nil
	})
	if err != nil {
		// El PAC sí timbró: no se reintenta a ciegas (riesgo de doble emisión).
		// El candado queda resuelto con el folio para diagnóstico manual.
		relErr := o.locks.ReleaseLock(ctx, doc.ID, acq.AttemptID, entity.AttemptOutcomeFailure, ErrorTypeUnknown,
			fmt.Sprintf("timbrado OK (folio %s) pero el commit falló: %v", result.Folio, err), result.PACResponse)
		if relErr != nil {
			log.Error().Err(relErr).Msg("falla liberando candado tras error de commit")
		}
		return nil, Retry(ErrorTypeUnknown, fmt.Errorf("persistir timbrado de %s: %w", doc.ID, err))
	}

	if err := o.locks.ReleaseLock(ctx, doc.ID, acq.AttemptID, entity.AttemptOutcomeSuccess, "", "", result.PACResponse); err != nil {
		log.Error().Err(err).Msg("falla liberando candado tras éxito; el estado terminal del documento lo supersede")
	}

	if _, err := o.audit.Record(ctx, o.resolveActor(job), "cfdi.stamped", "cfdi", doc.ID,
		map[string]any{"status": entity.CFDIStatusPending},
		map[string]any{
			"status":      entity.CFDIStatusStamped,
			"folio":       result.Folio,
			"employee_id": doc.EmployeeID,
			"stamped_at":  result.StampedAt.UTC().Format(time.RFC3339),
		},
	); err != nil {
		log.Error().Err(err).Msg("falla registrando timbrado en bitácora")
	}

	// ── 6. Finalización de período y contadores de lote ───────────────────────
	finalized, err := o.finalizer.FinalizeIfComplete(ctx, doc.ID, lineItemID, job.PeriodID)
	if err != nil {
		log.Error().Err(err).Msg("falla evaluando finalización de período")
	}
	o.bumpBatch(ctx, log, job.BatchID, true)

	o.publish(ctx, Event{
		Name:       EventStampingSucceeded,
		DocumentID: doc.ID,
		PeriodID:   job.PeriodID,
		Folio:      result.Folio,
		OccurredAt: time.Now(),
	})
	if finalized {
		o.publish(ctx, Event{Name: EventPeriodFinalized, DocumentID: doc.ID, PeriodID: job.PeriodID, OccurredAt: time.Now()})
	}

	log.Info().Str("folio", result.Folio).Bool("period_finalized", finalized).Msg("CFDI timbrado")
	return &StampJobResult{
		Success:         true,
		DocumentID:      doc.ID,
		Folio:           result.Folio,
		AttemptNumber:   attemptNumber,
		PeriodFinalized: finalized,
	}, nil
}

// handleStampFailure clasifica la falla del PAC, libera el candado y decide
// entre re-lanzar (la cola reintenta con backoff) o persistir la falla permanente.
func (o *Orchestrator) handleStampFailure(
	ctx context.Context,
	log zerolog.Logger,
	doc *entity.CFDI,
	job StampJob,
	attemptID string,
	attemptNumber int,
	lastAttempt bool,
	stampErr error,
) (*StampJobResult, error) {
	class := Classify(stampErr.Error())
	if class.Type == ErrorTypeUnknown {
		// Señal para operadores: cadenas nuevas del PAC que queman reintentos
		// como UNKNOWN deben incorporarse al clasificador.
		log.Warn().Str("raw_error", stampErr.Error()).Msg("error del PAC sin clasificar, reintento optimista")
	}

	if err := o.locks.ReleaseLock(ctx, doc.ID, attemptID, entity.AttemptOutcomeFailure, class.Type, stampErr.Error(), ""); err != nil {
		log.Error().Err(err).Msg("falla liberando candado tras error del PAC")
	}

	if class.Retryable && !lastAttempt {
		log.Warn().
			Str("error_type", string(class.Type)).
			Str("raw_error", stampErr.Error()).
			Msg("falla transitoria, la cola reintentará con backoff")
		return nil, Retry(class.Type, stampErr)
	}

	return o.persistPermanentFailure(ctx, log, doc, job, attemptNumber, class, stampErr.Error())
}

// persistPermanentFailure fija, en una sola transacción, el CFDI en ERROR y la
// línea en STAMP_ERROR, registra bitácora y contadores, y devuelve Success=false
// sin re-lanzar: el trabajo termina sin más reintentos automáticos.
func (o *Orchestrator) persistPermanentFailure(
	ctx context.Context,
	log zerolog.Logger,
	doc *entity.CFDI,
	job StampJob,
	attemptNumber int,
	class Classification,
	errMessage string,
) (*StampJobResult, error) {
	lineItemID := job.LineItemID
	if lineItemID == "" {
		lineItemID = doc.LineItemID
	}
	err := o.tx.RunStamping(ctx, func(
		cfdiRepo repository.CFDIRepository,
		lineRepo repository.PayrollLineItemRepository,
	) error {
		if _, err := cfdiRepo.MarkError(ctx, doc.ID, errMessage, attemptNumber); err != nil {
			return err
		}
		if lineItemID != "" {
			return lineRepo.UpdateStatus(ctx, lineItemID, entity.LineItemStatusStampError)
		}
		return nil
	})
	if err != nil {
		// No se pudo persistir el terminal: dejar que la cola reintente el cierre.
		return nil, Retry(ErrorTypeUnknown, fmt.Errorf("persistir falla permanente de %s: %w", doc.ID, err))
	}

	if _, err := o.audit.Record(ctx, o.resolveActor(job), "cfdi.stamp_failed", "cfdi", doc.ID,
		map[string]any{"status": entity.CFDIStatusPending},
		map[string]any{
			"status":        entity.CFDIStatusError,
			"error_type":    string(class.Type),
			"error_message": errMessage,
			"attempt_count": attemptNumber,
		},
	); err != nil {
		log.Error().Err(err).Msg("falla registrando error permanente en bitácora")
	}

	// El finalizador solo corre en éxito: un período cuyo último pendiente cae en
	// falla permanente queda en PROCESSING hasta intervención manual.
	if job.PeriodID != "" {
		log.Warn().
			Str("period_id", job.PeriodID).
			Msg("falla permanente en el período; revisar aprobación manual si era el último pendiente")
	}

	o.bumpBatch(ctx, log, job.BatchID, false)
	o.publish(ctx, Event{
		Name:       EventStampingFailed,
		DocumentID: doc.ID,
		PeriodID:   job.PeriodID,
		ErrorType:  string(class.Type),
		OccurredAt: time.Now(),
	})

	log.Error().
		Str("error_type", string(class.Type)).
		Str("raw_error", errMessage).
		Msg("CFDI marcado en ERROR permanente")
	return &StampJobResult{
		Success:       false,
		DocumentID:    doc.ID,
		ErrorType:     class.Type,
		ErrorMessage:  errMessage,
		AttemptNumber: attemptNumber,
	}, nil
}

func (o *Orchestrator) resolveActor(job StampJob) string {
	if job.ActorID != "" {
		return job.ActorID
	}
	return o.actorID
}

func (o *Orchestrator) bumpBatch(ctx context.Context, log zerolog.Logger, batchID string, completed bool) {
	if batchID == "" {
		return
	}
	var err error
	if completed {
		err = o.batches.IncrementCompleted(ctx, batchID)
	} else {
		err = o.batches.IncrementFailed(ctx, batchID)
	}
	if err != nil {
		log.Error().Err(err).Str("batch_id", batchID).Msg("falla actualizando contadores del lote")
	}
}

func (o *Orchestrator) publish(ctx context.Context, ev Event) {
	if o.publisher != nil {
		o.publisher.Publish(ctx, ev)
	}
}

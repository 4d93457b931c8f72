package stamping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
	"github.com/nominacloud/nomina-api/internal/infrastructure/queue"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// Enqueuer puerto mínimo hacia la cola de trabajos.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload []byte, opts *queue.Options) (string, error)
}

// Service casos de uso del operador sobre el pipeline de timbrado: encolar
// documentos y períodos, y consultar avance. El procesamiento en sí vive en el
// orquestador; aquí solo se preparan y despachan trabajos.
type Service struct {
	cfdis     repository.CFDIRepository
	periods   repository.PayrollPeriodRepository
	batches   repository.BatchRepository
	employees repository.EmployeeRepository
	jobs      Enqueuer
	log       *logger.Logger
}

// NewService construye el servicio.
func NewService(
	cfdis repository.CFDIRepository,
	periods repository.PayrollPeriodRepository,
	batches repository.BatchRepository,
	employees repository.EmployeeRepository,
	jobs Enqueuer,
	log *logger.Logger,
) *Service {
	return &Service{cfdis: cfdis, periods: periods, batches: batches, employees: employees, jobs: jobs, log: log}
}

// EnqueueDocument encola el timbrado de un solo documento. receiptVersion 0
// timbra la versión vigente; priority adelanta el trabajo en la cola. Un
// documento ya timbrado devuelve ErrAlreadyStamped; uno en ERROR devuelve
// ErrConflict (el operador debe generar una nueva versión del recibo antes de
// reintentar).
func (s *Service) EnqueueDocument(ctx context.Context, documentID, actorID string, receiptVersion, priority int) (string, error) {
	doc, err := s.cfdis.GetByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("leer CFDI %s: %w", documentID, err)
	}
	if doc == nil {
		return "", fmt.Errorf("CFDI %s: %w", documentID, domain.ErrNotFound)
	}
	switch doc.Status {
	case entity.CFDIStatusStamped:
		return "", fmt.Errorf("CFDI %s ya timbrado con folio %s: %w", documentID, doc.Folio, ErrAlreadyStamped)
	case entity.CFDIStatusError:
		return "", fmt.Errorf("CFDI %s en ERROR permanente: %w", documentID, domain.ErrConflict)
	}

	return s.enqueueJob(ctx, StampJob{
		DocumentID:     doc.ID,
		LineItemID:     doc.LineItemID,
		ReceiptVersion: receiptVersion,
		CompanyID:      doc.CompanyID,
		ActorID:        actorID,
		Priority:       priority,
	})
}

// EnqueuePeriod marca el período como PROCESSING y encola todos sus CFDIs
// pendientes bajo un lote nuevo. Devuelve el lote y cuántos trabajos se encolaron.
func (s *Service) EnqueuePeriod(ctx context.Context, periodID, actorID string) (*entity.StampingBatch, int, error) {
	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, 0, fmt.Errorf("leer período %s: %w", periodID, err)
	}
	if period == nil {
		return nil, 0, fmt.Errorf("período %s: %w", periodID, domain.ErrNotFound)
	}

	ok, err := s.periods.MarkProcessing(ctx, periodID)
	if err != nil {
		return nil, 0, fmt.Errorf("marcar período %s en proceso: %w", periodID, err)
	}
	if !ok {
		return nil, 0, fmt.Errorf("período %s en estado %s no es timbrable: %w", periodID, period.Status, domain.ErrConflict)
	}

	pending, err := s.cfdis.ListPendingByPeriod(ctx, periodID)
	if err != nil {
		return nil, 0, fmt.Errorf("listar CFDIs pendientes del período %s: %w", periodID, err)
	}
	if len(pending) == 0 {
		return nil, 0, fmt.Errorf("período %s sin CFDIs pendientes: %w", periodID, domain.ErrInvalidInput)
	}

	batch := &entity.StampingBatch{CompanyID: period.CompanyID, Total: len(pending)}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, 0, fmt.Errorf("crear lote del período %s: %w", periodID, err)
	}

	enqueued := 0
	for _, doc := range pending {
		if _, err := s.enqueueJob(ctx, StampJob{
			DocumentID: doc.ID,
			LineItemID: doc.LineItemID,
			PeriodID:   periodID,
			CompanyID:  doc.CompanyID,
			ActorID:    actorID,
			BatchID:    batch.ID,
		}); err != nil {
			// Encolado parcial: los hermanos ya despachados siguen su curso; el
			// faltante se reporta para que el operador re-lance el período.
			s.log.Error().Err(err).Str("document_id", doc.ID).Msg("falla encolando CFDI del período")
			return batch, enqueued, fmt.Errorf("encolar CFDI %s: %w", doc.ID, err)
		}
		enqueued++
	}

	s.log.Info().
		Str("period_id", periodID).
		Str("batch_id", batch.ID).
		Int("total", enqueued).
		Msg("período encolado para timbrado")
	return batch, enqueued, nil
}

// DocumentDetail comprobante con los datos del empleado receptor.
type DocumentDetail struct {
	Doc      *entity.CFDI
	Employee *entity.Employee
}

// GetDocument consulta un comprobante con su empleado. Un empleado irresoluble
// no bloquea la consulta: se devuelve el documento con Employee en nil.
func (s *Service) GetDocument(ctx context.Context, documentID string) (*DocumentDetail, error) {
	doc, err := s.cfdis.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("leer CFDI %s: %w", documentID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("CFDI %s: %w", documentID, domain.ErrNotFound)
	}
	emp, err := s.employees.GetByID(ctx, doc.EmployeeID)
	if err != nil {
		s.log.Warn().Err(err).Str("employee_id", doc.EmployeeID).Msg("empleado del CFDI no resuelto")
		emp = nil
	}
	return &DocumentDetail{Doc: doc, Employee: emp}, nil
}

// PeriodStatus estado consultable de un período: el registro más el conteo vivo
// de líneas sin timbrar.
type PeriodStatus struct {
	Period       *entity.PayrollPeriod
	PendingItems int64
}

// GetPeriodStatus consulta un período con su conteo de pendientes.
func (s *Service) GetPeriodStatus(ctx context.Context, periodID string) (*PeriodStatus, error) {
	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("leer período %s: %w", periodID, err)
	}
	if period == nil {
		return nil, fmt.Errorf("período %s: %w", periodID, domain.ErrNotFound)
	}
	pending, err := s.periods.CountItemsNotStamped(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("contar pendientes del período %s: %w", periodID, err)
	}
	return &PeriodStatus{Period: period, PendingItems: pending}, nil
}

// ListStuckPeriods reporta los períodos de la empresa atorados en PROCESSING por
// fallas permanentes (requieren aprobación o corrección manual).
func (s *Service) ListStuckPeriods(ctx context.Context, companyID string) ([]*entity.PayrollPeriod, error) {
	return s.periods.ListStuckProcessing(ctx, companyID)
}

// GetBatch consulta el avance de un lote.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*entity.StampingBatch, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("leer lote %s: %w", batchID, err)
	}
	if batch == nil {
		return nil, fmt.Errorf("lote %s: %w", batchID, domain.ErrNotFound)
	}
	return batch, nil
}

func (s *Service) enqueueJob(ctx context.Context, job StampJob) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("serializar trabajo de timbrado: %w", err)
	}
	var opts *queue.Options
	if job.Priority != 0 {
		opts = &queue.Options{Priority: job.Priority}
	}
	return s.jobs.Enqueue(ctx, JobTypeStampCFDI, payload, opts)
}

package stamping

import (
	"context"
	"fmt"
	"time"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// PeriodFinalizer aprueba automáticamente un período cuando su último recibo
// pendiente queda timbrado. Corre una vez por timbrado exitoso; el conteo de
// pendientes se relee en cada llamada, así que el último documento en completar
// dispara la transición de forma natural.
type PeriodFinalizer struct {
	periods  repository.PayrollPeriodRepository
	lines    repository.PayrollLineItemRepository
	cfdis    repository.CFDIRepository
	audit    AuditTrail
	actorID  string
	log      *logger.Logger
}

// NewPeriodFinalizer construye el finalizador. actorID es el actor registrado en
// la bitácora para la transición automática.
func NewPeriodFinalizer(
	periods repository.PayrollPeriodRepository,
	lines repository.PayrollLineItemRepository,
	cfdis repository.CFDIRepository,
	audit AuditTrail,
	actorID string,
	log *logger.Logger,
) *PeriodFinalizer {
	return &PeriodFinalizer{
		periods: periods,
		lines:   lines,
		cfdis:   cfdis,
		audit:   audit,
		actorID: actorID,
		log:     log,
	}
}

// FinalizeIfComplete transiciona el período PROCESSING → APPROVED si ya no le
// quedan líneas sin timbrar. Devuelve true solo si esta llamada realizó la
// transición. Un período irresoluble no es fatal: se loguea y devuelve false.
func (f *PeriodFinalizer) FinalizeIfComplete(ctx context.Context, documentID, lineItemID, periodID string) (bool, error) {
	resolvedPeriodID, err := f.resolvePeriodID(ctx, documentID, lineItemID, periodID)
	if err != nil {
		return false, err
	}
	if resolvedPeriodID == "" {
		f.log.Warn().
			Str("document_id", documentID).
			Str("line_item_id", lineItemID).
			Msg("no se pudo resolver el período del documento, se omite finalización")
		return false, nil
	}

	period, err := f.periods.GetByID(ctx, resolvedPeriodID)
	if err != nil {
		return false, fmt.Errorf("leer período %s: %w", resolvedPeriodID, err)
	}
	if period == nil || period.Status != entity.PeriodStatusProcessing {
		// Solo aplica a períodos esperando timbrado; DRAFT o ya aprobados no se tocan.
		return false, nil
	}

	pending, err := f.periods.CountItemsNotStamped(ctx, resolvedPeriodID)
	if err != nil {
		return false, fmt.Errorf("contar líneas pendientes del período %s: %w", resolvedPeriodID, err)
	}
	if pending > 0 {
		return false, nil
	}

	// Update condicional: solo transiciona si sigue en PROCESSING. Una carrera
	// perdida (otro finalizador o una aprobación manual concurrente) devuelve
	// false sin error.
	transitioned, err := f.periods.TransitionIfProcessing(ctx, resolvedPeriodID, entity.PeriodStatusApproved)
	if err != nil {
		return false, fmt.Errorf("aprobar período %s: %w", resolvedPeriodID, err)
	}
	if !transitioned {
		return false, nil
	}

	f.log.Info().
		Str("period_id", resolvedPeriodID).
		Msg("período aprobado automáticamente: todos los recibos timbrados")

	if _, err := f.audit.Record(ctx, f.actorID, "period.auto_approved", "payroll_period", resolvedPeriodID,
		map[string]any{"status": entity.PeriodStatusProcessing},
		map[string]any{"status": entity.PeriodStatusApproved, "approved_at": time.Now().UTC().Format(time.RFC3339)},
	); err != nil {
		// La aprobación ya quedó persistida; una falla de bitácora se reporta pero no revierte.
		f.log.Error().Err(err).Str("period_id", resolvedPeriodID).Msg("falla registrando aprobación en bitácora")
	}
	return true, nil
}

// resolvePeriodID usa el id explícito si viene; si no, lo busca vía la línea; si
// no, vía la cadena documento → línea. Devuelve "" si no es resoluble.
func (f *PeriodFinalizer) resolvePeriodID(ctx context.Context, documentID, lineItemID, periodID string) (string, error) {
	if periodID != "" {
		return periodID, nil
	}
	if lineItemID == "" && documentID != "" {
		doc, err := f.cfdis.GetByID(ctx, documentID)
		if err != nil {
			return "", fmt.Errorf("leer CFDI %s: %w", documentID, err)
		}
		if doc != nil {
			lineItemID = doc.LineItemID
		}
	}
	if lineItemID == "" {
		return "", nil
	}
	line, err := f.lines.GetByID(ctx, lineItemID)
	if err != nil {
		return "", fmt.Errorf("leer línea de nómina %s: %w", lineItemID, err)
	}
	if line == nil {
		return "", nil
	}
	return line.PeriodID, nil
}

package stamping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nominacloud/nomina-api/internal/infrastructure/queue"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// JobTypeStampCFDI nombre de la cola de trabajos de timbrado.
const JobTypeStampCFDI = "cfdi.stamp"

// JobProcessor adapta el orquestador al contrato de la cola: un solo punto de
// entrada process(job) → resultado, registrado contra la cola nombrada.
type JobProcessor struct {
	orch *Orchestrator
	log  *logger.Logger
}

// NewJobProcessor construye el adaptador.
func NewJobProcessor(orch *Orchestrator, log *logger.Logger) *JobProcessor {
	return &JobProcessor{orch: orch, log: log}
}

// Process decodifica el payload, ejecuta el orquestador y traduce su contrato de
// errores al de la cola: RetryableError sube tal cual (la cola reprograma con
// backoff); cualquier otro error se marca Permanent para que no se reintente.
func (p *JobProcessor) Process(ctx context.Context, job queue.Job) error {
	var payload StampJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("payload de timbrado inválido: %w", err))
	}
	if payload.DocumentID == "" {
		return queue.Permanent(fmt.Errorf("payload de timbrado sin documentId"))
	}

	result, err := p.orch.Process(ctx, payload, job.AttemptsMade+1, job.LastAttempt)
	if err != nil {
		if IsRetryable(err) {
			return err
		}
		return queue.Permanent(err)
	}

	p.log.Debug().
		Str("document_id", result.DocumentID).
		Bool("success", result.Success).
		Int("attempt", result.AttemptNumber).
		Msg("trabajo de timbrado resuelto")
	return nil
}

package stamping

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
)

// StampingTxRunner ejecuta una función dentro de una transacción que incluye los
// repos mutados por el cierre terminal de un trabajo de timbrado. El paso
// "commit del resultado" del orquestador es exactamente un scope de estos.
type StampingTxRunner interface {
	RunStamping(ctx context.Context, fn func(
		cfdiRepo repository.CFDIRepository,
		lineRepo repository.PayrollLineItemRepository,
	) error) error
}

// StampResult respuesta del PAC tras un timbrado exitoso.
type StampResult struct {
	Folio           string    // UUID fiscal asignado por el PAC
	StampedAt       time.Time // fecha de timbrado del timbre fiscal digital
	SignedResult    string    // CFDI timbrado completo
	PACResponse     string    // payload crudo de respuesta del PAC
}

// StampingClient puerto de salida hacia el PAC. Una sola llamada remota bloqueante
// por intento; el reintento completo vive en la capa de cola, nunca aquí.
// Los errores se devuelven con el mensaje crudo del PAC para que el clasificador
// decida si son transitorios o permanentes.
type StampingClient interface {
	Stamp(ctx context.Context, sourceDocument string, creds *SigningCredentials) (*StampResult, error)
}

// SigningCredentials material de firma (CSD) de la empresa emisora, descifrado
// bajo demanda. Nunca se loguea.
type SigningCredentials struct {
	Provider    string // PAC contratado
	Mode        string // dev | test | prod
	Certificate tls.Certificate
}

// CredentialsProvider resuelve las credenciales de firma vigentes de una empresa.
type CredentialsProvider interface {
	GetSigningCredentials(ctx context.Context, companyID string) (*SigningCredentials, error)
}

// AuditTrail puerto hacia la bitácora encadenada. El orquestador registra una
// entrada por cambio de estado significativo; la verificación de la cadena es un
// diagnóstico aparte, jamás corre en el flujo de timbrado.
type AuditTrail interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, oldValues, newValues map[string]any) (*entity.AuditEntry, error)
}

// Eventos publicados por el pipeline.
const (
	EventStampingSucceeded = "stamping.succeeded"
	EventStampingFailed    = "stamping.failed"
	EventPeriodFinalized   = "period.finalized"
)

// Event notificación transversal emitida al resolver un trabajo.
type Event struct {
	Name       string
	DocumentID string
	PeriodID   string
	Folio      string
	ErrorType  string
	OccurredAt time.Time
}

// Publisher puerto de publicación de eventos (pub/sub plano, sin registro por atributos).
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

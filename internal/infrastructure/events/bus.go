// Bus de eventos en memoria: publish/subscribe plano para notificaciones
// transversales del pipeline (sin registro por decoradores ni broker externo).
package events

import (
	"context"
	"sync"

	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// Handler suscriptor de eventos de timbrado.
type Handler func(ctx context.Context, ev stamping.Event)

// Bus implementación en memoria de stamping.Publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewBus construye el bus.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{handlers: make(map[string][]Handler), log: log}
}

// Subscribe registra un handler para el evento nombrado.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish entrega el evento a todos los suscriptores del nombre. Los handlers
// corren en la goroutine del publicador; deben ser baratos.
func (b *Bus) Publish(ctx context.Context, ev stamping.Event) {
	b.mu.RLock()
	hs := b.handlers[ev.Name]
	b.mu.RUnlock()
	for _, h := range hs {
		h(ctx, ev)
	}
}

// LogSubscriber suscriptor por defecto: deja rastro estructurado de cada evento.
func (b *Bus) LogSubscriber() Handler {
	return func(_ context.Context, ev stamping.Event) {
		b.log.Info().
			Str("event", ev.Name).
			Str("document_id", ev.DocumentID).
			Str("period_id", ev.PeriodID).
			Str("folio", ev.Folio).
			Str("error_type", ev.ErrorType).
			Msg("evento de timbrado")
	}
}

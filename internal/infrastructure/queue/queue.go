// Cola de trabajos embebida: workers concurrentes en proceso con reintentos y
// backoff exponencial. Cumple el contrato de una cola externa (entrega el
// payload más attemptsMade, redelivery de trabajos fallidos hasta maxAttempts)
// sin requerir un broker para despliegues de un solo nodo.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// Job trabajo entregado a un Processor.
type Job struct {
	ID           string
	Type         string
	Payload      []byte
	Priority     int
	AttemptsMade int  // entregas previas fallidas (0 en la primera)
	LastAttempt  bool // true cuando esta entrega agota maxAttempts
	EnqueuedAt   time.Time
}

// Processor punto de entrada único de procesamiento registrado contra una cola
// nombrada. Un error devuelto reprograma el trabajo con backoff; envolverlo con
// Permanent lo descarta sin reintento.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// PermanentError marca una falla que no debe reintentarse.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("falla permanente: %v", e.Cause) }
func (e *PermanentError) Unwrap() error { return e.Cause }

// Permanent envuelve err para que la cola no lo reintente.
func Permanent(err error) error { return &PermanentError{Cause: err} }

// Options opciones por trabajo; los ceros toman los defaults de la cola.
// Priority > 0 despacha el trabajo por el carril urgente, que los workers
// atienden antes que el carril normal.
type Options struct {
	Priority    int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Config configuración de la cola.
type Config struct {
	Concurrency int           // workers paralelos (dígito bajo: el PAC limita tasa)
	MaxAttempts int           // default por trabajo
	BaseDelay   time.Duration // base del backoff exponencial
	MaxDelay    time.Duration // tope del backoff
}

type item struct {
	job  Job
	opts Options
}

// Queue cola en proceso con colas nombradas por tipo de trabajo. Mantiene dos
// carriles: tasks (FIFO normal) y urgent (Priority > 0), que se drena primero.
type Queue struct {
	cfg    Config
	log    *logger.Logger
	tasks  chan item
	urgent chan item

	mu         sync.RWMutex
	processors map[string]Processor

	wg      sync.WaitGroup // workers
	pending sync.WaitGroup // trabajos encolados o esperando backoff
	stop    chan struct{}
	started bool
}

// New construye la cola. Llamar Register para cada tipo de trabajo y luego Start.
func New(cfg Config, log *logger.Logger) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Minute
	}
	return &Queue{
		cfg:        cfg,
		log:        log,
		tasks:      make(chan item, 1024),
		urgent:     make(chan item, 1024),
		processors: make(map[string]Processor),
		stop:       make(chan struct{}),
	}
}

// Register asocia un Processor al tipo de trabajo dado.
func (q *Queue) Register(jobType string, p Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processors[jobType] = p
}

// Enqueue encola un trabajo. Devuelve el id asignado.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload []byte, opts *Options) (string, error) {
	q.mu.RLock()
	_, ok := q.processors[jobType]
	q.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("queue: tipo de trabajo no registrado: %s", jobType)
	}

	o := Options{MaxAttempts: q.cfg.MaxAttempts, BaseDelay: q.cfg.BaseDelay, MaxDelay: q.cfg.MaxDelay}
	if opts != nil {
		if opts.MaxAttempts > 0 {
			o.MaxAttempts = opts.MaxAttempts
		}
		if opts.BaseDelay > 0 {
			o.BaseDelay = opts.BaseDelay
		}
		if opts.MaxDelay > 0 {
			o.MaxDelay = opts.MaxDelay
		}
		o.Priority = opts.Priority
	}

	it := item{
		job: Job{
			ID:          uuid.New().String(),
			Type:        jobType,
			Payload:     payload,
			Priority:    o.Priority,
			LastAttempt: o.MaxAttempts == 1,
			EnqueuedAt:  time.Now(),
		},
		opts: o,
	}

	q.pending.Add(1)
	select {
	case q.laneFor(it.job.Priority) <- it:
		return it.job.ID, nil
	case <-ctx.Done():
		q.pending.Done()
		return "", ctx.Err()
	case <-q.stop:
		q.pending.Done()
		return "", errors.New("queue: cola detenida")
	}
}

// laneFor elige el carril de despacho según la prioridad del trabajo.
func (q *Queue) laneFor(priority int) chan item {
	if priority > 0 {
		return q.urgent
	}
	return q.tasks
}

// Start arranca los workers. ctx acota la vida de todos los procesamientos.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, n int) {
	defer q.wg.Done()
	for {
		// El carril urgente gana siempre que tenga trabajos listos.
		select {
		case it := <-q.urgent:
			q.run(ctx, it)
			continue
		default:
		}
		select {
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		case it := <-q.urgent:
			q.run(ctx, it)
		case it := <-q.tasks:
			q.run(ctx, it)
		}
	}
}

func (q *Queue) run(ctx context.Context, it item) {
	defer q.pending.Done()

	q.mu.RLock()
	proc := q.processors[it.job.Type]
	q.mu.RUnlock()

	log := q.log.With().
		Str("job_id", it.job.ID).
		Str("job_type", it.job.Type).
		Int("attempts_made", it.job.AttemptsMade).
		Logger()

	err := proc.Process(ctx, it.job)
	if err == nil {
		return
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		log.Error().Err(perm.Cause).Msg("trabajo descartado sin reintento")
		return
	}

	attempt := it.job.AttemptsMade + 1
	if attempt >= it.opts.MaxAttempts {
		log.Error().Err(err).Int("max_attempts", it.opts.MaxAttempts).Msg("trabajo agotó sus reintentos")
		return
	}

	delay := Backoff(attempt, it.opts.BaseDelay, it.opts.MaxDelay)
	next := it
	next.job.AttemptsMade = attempt
	next.job.LastAttempt = attempt+1 >= it.opts.MaxAttempts

	log.Warn().Err(err).Dur("delay", delay).Msg("trabajo reprogramado con backoff")

	q.pending.Add(1)
	time.AfterFunc(delay, func() {
		select {
		case q.laneFor(next.job.Priority) <- next:
		case <-q.stop:
			q.pending.Done()
		}
	})
}

// Shutdown espera a que drenen los trabajos en curso o a que venza ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		close(q.stop)
		q.wg.Wait()
		return ctx.Err()
	}
	close(q.stop)
	q.wg.Wait()
	return nil
}

package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "test", Level: "error"})
}

type funcProcessor struct {
	fn func(ctx context.Context, job Job) error
}

func (p *funcProcessor) Process(ctx context.Context, job Job) error { return p.fn(ctx, job) }

func newTestQueue(concurrency, maxAttempts int) *Queue {
	return New(Config{
		Concurrency: concurrency,
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}, testLogger())
}

// TestQueue_EntregaSimple un trabajo encolado llega al processor con attemptsMade 0.
func TestQueue_EntregaSimple(t *testing.T) {
	q := newTestQueue(2, 3)

	var got Job
	var wg sync.WaitGroup
	wg.Add(1)
	q.Register("test.job", &funcProcessor{fn: func(_ context.Context, job Job) error {
		got = job
		wg.Done()
		return nil
	}})
	q.Start(context.Background())

	id, err := q.Enqueue(context.Background(), "test.job", []byte(`{"x":1}`), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	wg.Wait()
	assert.Equal(t, 0, got.AttemptsMade)
	assert.False(t, got.LastAttempt)
	assert.Equal(t, []byte(`{"x":1}`), got.Payload)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}

// TestQueue_ReintentaConBackoff un error reintentable se reentrega hasta maxAttempts,
// con attemptsMade creciente y LastAttempt en la entrega final.
func TestQueue_ReintentaConBackoff(t *testing.T) {
	q := newTestQueue(1, 3)

	var mu sync.Mutex
	var attempts []int
	var lastFlags []bool
	done := make(chan struct{})

	q.Register("test.retry", &funcProcessor{fn: func(_ context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.AttemptsMade)
		lastFlags = append(lastFlags, job.LastAttempt)
		n := len(attempts)
		mu.Unlock()
		if n == 3 {
			close(done)
			return nil
		}
		return errors.New("falla transitoria")
	}})
	q.Start(context.Background())

	_, err := q.Enqueue(context.Background(), "test.retry", nil, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("el trabajo no se reintentó a tiempo")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, attempts)
	assert.Equal(t, []bool{false, false, true}, lastFlags, "la última entrega debe anunciarse")
}

// TestQueue_NoReintentaPermanente un PermanentError descarta el trabajo de inmediato.
func TestQueue_NoReintentaPermanente(t *testing.T) {
	q := newTestQueue(1, 5)

	var calls atomic.Int32
	q.Register("test.perm", &funcProcessor{fn: func(_ context.Context, _ Job) error {
		calls.Add(1)
		return Permanent(errors.New("RFC inválido"))
	}})
	q.Start(context.Background())

	_, err := q.Enqueue(context.Background(), "test.perm", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.Equal(t, int32(1), calls.Load(), "no debe haber segunda entrega")
}

// TestQueue_AgotaIntentos un trabajo que siempre falla se entrega exactamente maxAttempts veces.
func TestQueue_AgotaIntentos(t *testing.T) {
	q := newTestQueue(1, 3)

	var calls atomic.Int32
	q.Register("test.exhaust", &funcProcessor{fn: func(_ context.Context, _ Job) error {
		calls.Add(1)
		return errors.New("503")
	}})
	q.Start(context.Background())

	_, err := q.Enqueue(context.Background(), "test.exhaust", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.Equal(t, int32(3), calls.Load())
}

// TestQueue_PrioridadAdelanta un trabajo con Priority > 0 encolado al final se
// procesa antes que los normales que ya esperaban.
func TestQueue_PrioridadAdelanta(t *testing.T) {
	q := newTestQueue(1, 3)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	q.Register("test.prio", &funcProcessor{fn: func(_ context.Context, job Job) error {
		mu.Lock()
		order = append(order, job.Priority)
		n := len(order)
		mu.Unlock()
		if n == 4 {
			close(done)
		}
		return nil
	}})

	// Encolar antes de Start fija el orden de llegada: tres normales y al final
	// uno urgente.
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(context.Background(), "test.prio", nil, nil)
		require.NoError(t, err)
	}
	_, err := q.Enqueue(context.Background(), "test.prio", nil, &Options{Priority: 5})
	require.NoError(t, err)

	q.Start(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no se procesaron todos los trabajos a tiempo")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	assert.Equal(t, 5, order[0], "el urgente debe despacharse primero")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}

// TestQueue_TipoNoRegistrado encolar sin processor registrado es un error.
func TestQueue_TipoNoRegistrado(t *testing.T) {
	q := newTestQueue(1, 3)
	q.Start(context.Background())
	_, err := q.Enqueue(context.Background(), "nadie.me.procesa", nil, nil)
	assert.Error(t, err)
}

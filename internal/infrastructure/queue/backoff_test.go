package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestExpBackoff_Monotono los retardos crecen estrictamente hasta llegar al tope.
func TestExpBackoff_Monotono(t *testing.T) {
	base := 2 * time.Second
	max := 5 * time.Minute

	prev := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		d := ExpBackoff(attempt, base, max)
		if prev < max {
			assert.Greater(t, d, prev, "el retardo del intento %d debe crecer", attempt)
		}
		prev = d
	}
}

// TestExpBackoff_Tope el retardo queda acotado por max sin importar el intento.
func TestExpBackoff_Tope(t *testing.T) {
	base := 2 * time.Second
	max := 300 * time.Second

	assert.Equal(t, max, ExpBackoff(20, base, max))
	assert.Equal(t, max, ExpBackoff(63, base, max), "intentos enormes no deben desbordar")
	assert.LessOrEqual(t, ExpBackoff(5, base, max), max)
}

// TestExpBackoff_Valores duplicación exacta en los primeros intentos.
func TestExpBackoff_Valores(t *testing.T) {
	base := 2 * time.Second
	max := 5 * time.Minute

	assert.Equal(t, 2*time.Second, ExpBackoff(1, base, max))
	assert.Equal(t, 4*time.Second, ExpBackoff(2, base, max))
	assert.Equal(t, 8*time.Second, ExpBackoff(3, base, max))
}

// TestJitter_Rango el jitter queda en [0.75d, 1.25d].
func TestJitter_Rango(t *testing.T) {
	d := 10 * time.Second
	for i := 0; i < 200; i++ {
		j := Jitter(d)
		assert.GreaterOrEqual(t, j, d*3/4)
		assert.LessOrEqual(t, j, d*5/4)
	}
}

// TestBackoff_NoExcedeTope aun con jitter, nunca supera el máximo configurado.
func TestBackoff_NoExcedeTope(t *testing.T) {
	base := 2 * time.Second
	max := 300 * time.Second
	for i := 0; i < 200; i++ {
		assert.LessOrEqual(t, Backoff(30, base, max), max)
	}
}

func TestExpBackoff_IntentoInvalido(t *testing.T) {
	// intentos < 1 se tratan como el primero
	assert.Equal(t, ExpBackoff(1, time.Second, time.Minute), ExpBackoff(0, time.Second, time.Minute))
}

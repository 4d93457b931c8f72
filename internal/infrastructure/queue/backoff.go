package queue

import (
	"math/rand"
	"time"
)

// ExpBackoff devuelve el retardo determinista para el intento dado (1-based):
// base duplicándose por intento, con tope en max. El tope aplica sin importar
// el número de intento (evita overflow con attempts grandes).
func ExpBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Jitter aplica ±25% aleatorio al retardo para evitar que reintentos en manada
// golpeen al PAC al mismo tiempo.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// rango [0.75d, 1.25d)
	min := d * 3 / 4
	span := d / 2
	return min + time.Duration(rand.Int63n(int64(span)+1))
}

// Backoff retardo efectivo para el intento: exponencial con tope y jitter.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := Jitter(ExpBackoff(attempt, base, max))
	if d > max {
		return max
	}
	return d
}

package stamping

import (
	"errors"
	"fmt"
)

// Errores de contrato del lock manager.
var (
	// ErrAlreadyStamped el documento ya está en STAMPED; el folio existente se
	// devuelve como éxito, nunca como falla.
	ErrAlreadyStamped = errors.New("documento ya timbrado")
	// ErrInProgress otro worker tiene un intento activo sobre el documento.
	ErrInProgress = errors.New("timbrado en curso por otro worker")
)

// RetryableError marca una falla que la cola debe reintentar con backoff.
// Envuelve la causa para conservar el mensaje crudo del PAC.
type RetryableError struct {
	ErrType ErrorType
	Cause   error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("falla reintentable (%s): %v", e.ErrType, e.Cause)
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// Retry envuelve err como reintentable con la clasificación dada.
func Retry(t ErrorType, err error) error {
	return &RetryableError{ErrType: t, Cause: err}
}

// IsRetryable indica si err (o su cadena de causas) pide reintento de la cola.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

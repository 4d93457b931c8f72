package cfdi

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateFolio valida que el folio fiscal asignado por el PAC sea un UUID
// bien formado (el SAT lo exige en el timbre fiscal digital).
func ValidateFolio(folio string) error {
	s := strings.TrimSpace(folio)
	if s == "" {
		return fmt.Errorf("cfdi: folio fiscal vacío")
	}
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("cfdi: folio fiscal no es un UUID válido: %w", err)
	}
	return nil
}

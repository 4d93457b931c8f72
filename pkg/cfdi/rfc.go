package cfdi

import (
	"fmt"
	"regexp"
	"strings"
)

// Estructura del RFC (Anexo 20 SAT): 3 letras (moral) o 4 (física), fecha AAMMDD
// y homoclave de 3 caracteres cuyo último es dígito verificador.
var (
	rfcMoralRe  = regexp.MustCompile(`^[A-ZÑ&]{3}\d{6}[A-Z0-9]{2}[0-9A]$`)
	rfcFisicaRe = regexp.MustCompile(`^[A-ZÑ&]{4}\d{6}[A-Z0-9]{2}[0-9A]$`)
)

// valores de caracteres para el módulo 11 del dígito verificador (Anexo 20).
var rfcCharValues = map[rune]int{
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
	'A': 10, 'B': 11, 'C': 12, 'D': 13, 'E': 14, 'F': 15, 'G': 16, 'H': 17, 'I': 18,
	'J': 19, 'K': 20, 'L': 21, 'M': 22, 'N': 23, '&': 24, 'O': 25, 'P': 26, 'Q': 27,
	'R': 28, 'S': 29, 'T': 30, 'U': 31, 'V': 32, 'W': 33, 'X': 34, 'Y': 35, 'Z': 36,
	' ': 37, 'Ñ': 38,
}

// NormalizeRFC limpia espacios/guiones y pasa a mayúsculas.
func NormalizeRFC(rfc string) string {
	s := strings.ToUpper(strings.TrimSpace(rfc))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// ValidateRFC valida estructura del RFC (12 caracteres persona moral, 13 persona
// física) y su dígito verificador módulo 11.
func ValidateRFC(rfc string) error {
	s := NormalizeRFC(rfc)
	runes := []rune(s)
	switch len(runes) {
	case 12:
		if !rfcMoralRe.MatchString(s) {
			return fmt.Errorf("cfdi: RFC de persona moral con estructura inválida: %q", s)
		}
	case 13:
		if !rfcFisicaRe.MatchString(s) {
			return fmt.Errorf("cfdi: RFC de persona física con estructura inválida: %q", s)
		}
	default:
		return fmt.Errorf("cfdi: RFC debe tener 12 o 13 caracteres, se recibieron %d", len(runes))
	}
	expected, err := ComputeRFCCheckDigit(string(runes[:len(runes)-1]))
	if err != nil {
		return err
	}
	if got := runes[len(runes)-1]; got != expected {
		return fmt.Errorf("cfdi: dígito verificador del RFC inválido: esperado %c, recibido %c", expected, got)
	}
	return nil
}

// ComputeRFCCheckDigit calcula el dígito verificador para un RFC sin su último
// carácter (11 caracteres persona moral, 12 persona física). Las personas
// morales se rellenan con un espacio a la izquierda para sumar 12 posiciones.
func ComputeRFCCheckDigit(base string) (rune, error) {
	runes := []rune(NormalizeRFC(base))
	switch len(runes) {
	case 11:
		runes = append([]rune{' '}, runes...)
	case 12:
		// persona física, ya tiene 12 posiciones
	default:
		return 0, fmt.Errorf("cfdi: base del RFC debe tener 11 o 12 caracteres, se recibieron %d", len(runes))
	}
	var sum int
	for i, r := range runes {
		v, ok := rfcCharValues[r]
		if !ok {
			return 0, fmt.Errorf("cfdi: carácter no permitido en RFC: %q", r)
		}
		sum += v * (13 - i)
	}
	switch rem := sum % 11; rem {
	case 0:
		return '0', nil
	case 1:
		return 'A', nil
	default:
		return rune("0123456789"[11-rem]), nil
	}
}

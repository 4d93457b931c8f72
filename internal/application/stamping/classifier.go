package stamping

import "strings"

// ErrorType taxonomía cerrada de fallas de timbrado.
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "NETWORK"       // red: timeout, conexión rechazada
	ErrorTypePACTemporary ErrorType = "PAC_TEMPORARY" // PAC saturado o en mantenimiento
	ErrorTypeValidation   ErrorType = "VALIDATION"    // defecto fiscal del contenido
	ErrorTypeCertificate  ErrorType = "CERTIFICATE"   // defecto del material de firma
	ErrorTypeDuplicate    ErrorType = "DUPLICATE"     // el PAC reporta documento duplicado
	ErrorTypePACPermanent ErrorType = "PAC_PERMANENT" // rechazo definitivo del PAC (credenciales, 400/401)
	ErrorTypeUnknown      ErrorType = "UNKNOWN"       // sin coincidencia; reintento optimista
)

// Classification resultado de clasificar un mensaje de error del PAC.
type Classification struct {
	Type      ErrorType
	Retryable bool
}

// Reglas ordenadas: la primera coincidencia gana. El orden importa — "RFC" y los
// códigos SAT deben evaluarse antes que "sello"/"certificado" (un "CCE401: Sello
// no coincide" es un defecto de validación, no de certificado) y antes que los
// códigos HTTP genéricos.
var classifierRules = []struct {
	class   Classification
	markers []string
}{
	{Classification{ErrorTypeNetwork, true}, []string{
		"timeout", "timed out", "connection refused", "conexión rechazada",
		"no such host", "host not found", "network", "red no disponible", "econnreset",
	}},
	{Classification{ErrorTypePACTemporary, true}, []string{
		"502", "503", "429", "busy", "ocupado", "temporarily", "temporal", "temporary",
		"mantenimiento", "service unavailable",
	}},
	{Classification{ErrorTypeValidation, false}, []string{
		"rfc", "validation", "validación", "validacion", "invalid", "inválido", "invalido",
		"inválida", "invalida", "schema", "esquema", "301", "302", "303", "305", "cce",
	}},
	{Classification{ErrorTypeCertificate, false}, []string{
		"certificate", "certificado", "signature", "firma", "seal", "sello",
		"vencido", "expired", "csd",
	}},
	{Classification{ErrorTypeDuplicate, false}, []string{
		"duplicate", "duplicado", "ya fue timbrado", "previamente timbrado",
	}},
	{Classification{ErrorTypePACPermanent, false}, []string{
		"400", "401", "unauthorized", "no autorizado", "forbidden", "bad request",
	}},
}

// Classify mapea el texto crudo de un error del PAC a la taxonomía y a la
// decisión de reintento. Las fallas fiscales, de validación y de certificado son
// deterministas: reintentar el mismo payload con el mismo certificado falla
// idéntico, así que se tratan como permanentes. Sin coincidencia se asume
// transitoria (UNKNOWN, un reintento optimista).
func Classify(errorMessage string) Classification {
	msg := strings.ToLower(errorMessage)
	for _, rule := range classifierRules {
		for _, marker := range rule.markers {
			if strings.Contains(msg, marker) {
				return rule.class
			}
		}
	}
	return Classification{ErrorTypeUnknown, true}
}

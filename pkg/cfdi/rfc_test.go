package cfdi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/nominacloud/nomina-api/pkg/cfdi"
)

// TestComputeRFCCheckDigit_RoundTrip verifica que un RFC completado con el
// dígito calculado siempre pasa la validación (moral y física).
func TestComputeRFCCheckDigit_RoundTrip(t *testing.T) {
	bases := []string{
		"NOM010203AB",   // persona moral (11 caracteres)
		"GOAP800101HJ",  // persona física (12 caracteres)
		"XAXX010101L1",  // persona física con dígito en penúltima posición
	}
	for _, base := range bases {
		dv, err := cfdi.ComputeRFCCheckDigit(base)
		require.NoError(t, err, "el cálculo del dígito no debe fallar para %q", base)
		full := base + string(dv)
		assert.NoError(t, cfdi.ValidateRFC(full),
			"un RFC completado con su propio dígito debe validar: %q", full)
	}
}

// TestComputeRFCCheckDigit_Determinista mismo input, mismo dígito.
func TestComputeRFCCheckDigit_Determinista(t *testing.T) {
	d1, err1 := cfdi.ComputeRFCCheckDigit("NOM010203AB")
	d2, err2 := cfdi.ComputeRFCCheckDigit("NOM010203AB")
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, d1, d2)
}

func TestValidateRFC_LongitudInvalida(t *testing.T) {
	assert.Error(t, cfdi.ValidateRFC("ABC123"), "RFC corto debe rechazarse")
	assert.Error(t, cfdi.ValidateRFC("ABCD010101AB12"), "RFC de 14 caracteres debe rechazarse")
}

func TestValidateRFC_EstructuraInvalida(t *testing.T) {
	// fecha con letras
	assert.Error(t, cfdi.ValidateRFC("NOMAB0203AB1"))
	// caracteres fuera del alfabeto permitido en el prefijo
	assert.Error(t, cfdi.ValidateRFC("N1M010203AB1"))
}

func TestValidateRFC_DigitoIncorrecto(t *testing.T) {
	dv, err := cfdi.ComputeRFCCheckDigit("NOM010203AB")
	require.NoError(t, err)

	// elegir deliberadamente un dígito distinto al correcto
	wrong := byte('0')
	if dv == '0' {
		wrong = '1'
	}
	err = cfdi.ValidateRFC("NOM010203AB" + string(wrong))
	assert.Error(t, err, "un dígito verificador alterado debe rechazarse")
}

func TestNormalizeRFC(t *testing.T) {
	assert.Equal(t, "NOM010203AB1", cfdi.NormalizeRFC("  nom-010203 ab1 "))
}

func TestValidateFolio(t *testing.T) {
	assert.NoError(t, cfdi.ValidateFolio("6FA1B2C3-D4E5-4f67-89AB-0123456789AB"))
	assert.Error(t, cfdi.ValidateFolio(""), "folio vacío debe rechazarse")
	assert.Error(t, cfdi.ValidateFolio("ABC-123"), "folio que no es UUID debe rechazarse")
}

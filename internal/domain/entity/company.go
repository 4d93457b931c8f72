package entity

import "time"

// Modos de operación frente al PAC (por empresa).
const (
	PACModeDev  = "dev"  // no envía al PAC; timbrado simulado
	PACModeTest = "test" // ambiente de pruebas del PAC
	PACModeProd = "prod" // ambiente productivo
)

// Company representa un patrón/tenant del sistema (multi-tenant, enfoque México).
type Company struct {
	ID            string
	Name          string
	RFC           string // RFC del patrón (persona moral: 12 caracteres)
	RegimenFiscal string // catálogo SAT c_RegimenFiscal (ej: "601")
	Address       string
	Email         string
	Status        string // active, suspended, inactive
	PACProvider   string // proveedor de timbrado contratado (ej: "finkok", "sw")
	PACMode       string // ver constantes PACMode*
	CertPath      string // ruta al CSD .p12/.pfx o .pem
	CertKeyPath   string // llave privada .pem si CertPath es solo el certificado
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Package credentials carga el material de firma (CSD) de cada empresa emisora.
// El certificado nunca se loguea ni viaja en eventos.
package credentials

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/internal/domain"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/internal/domain/repository"
	"github.com/nominacloud/nomina-api/pkg/cfdi"
	"github.com/nominacloud/nomina-api/pkg/config"
)

// Asegura que Provider implementa el puerto de credenciales.
var _ stamping.CredentialsProvider = (*Provider)(nil)

// Provider resuelve las credenciales de firma vigentes de una empresa a partir
// de su registro y de las rutas de certificado configuradas.
type Provider struct {
	companies repository.CompanyRepository
	cfg       config.PACConfig
}

// NewProvider construye el proveedor.
func NewProvider(companies repository.CompanyRepository, cfg config.PACConfig) *Provider {
	return &Provider{companies: companies, cfg: cfg}
}

// GetSigningCredentials carga el CSD de la empresa. Soporta .p12/.pfx (con el
// password del PAC config) y pares PEM. En modo dev no se exige certificado:
// el timbrado simulado no firma nada real.
//
// Contrato de errores: los defectos deterministas del material (RFC malformado,
// CSD sin configurar o indescifrable) envuelven domain.ErrInvalidInput y la
// empresa inexistente domain.ErrNotFound; cualquier otro error es una falla de
// lectura del almacén y debe tratarse como transitoria.
func (p *Provider) GetSigningCredentials(ctx context.Context, companyID string) (*stamping.SigningCredentials, error) {
	company, err := p.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("leer empresa %s: %w", companyID, err)
	}
	if company == nil {
		return nil, fmt.Errorf("empresa %s: %w", companyID, domain.ErrNotFound)
	}

	// Un RFC emisor malformado haría rechazar todo timbrado de la empresa; se
	// detecta aquí para que la falla sea permanente y no queme reintentos.
	if err := cfdi.ValidateRFC(company.RFC); err != nil {
		return nil, fmt.Errorf("RFC emisor de la empresa %s: %v: %w", companyID, err, domain.ErrInvalidInput)
	}

	mode := company.PACMode
	if mode == "" {
		mode = p.cfg.Mode
	}
	provider := company.PACProvider
	if provider == "" {
		provider = p.cfg.Provider
	}

	creds := &stamping.SigningCredentials{Provider: provider, Mode: mode}
	if mode == entity.PACModeDev {
		return creds, nil
	}

	certPath := company.CertPath
	if certPath == "" {
		certPath = p.cfg.CertPath
	}
	if certPath == "" {
		return nil, fmt.Errorf("empresa %s sin certificado CSD configurado: %w", companyID, domain.ErrInvalidInput)
	}

	cert, err := loadCertificate(certPath, company.CertKeyPath, p.cfg.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("cargar CSD de la empresa %s: %v: %w", companyID, err, domain.ErrInvalidInput)
	}
	creds.Certificate = cert
	return creds, nil
}

// loadCertificate carga certificado y llave privada desde un .p12/.pfx o desde
// archivos PEM (separados o combinados).
func loadCertificate(certPath, keyPath, password string) (tls.Certificate, error) {
	if strings.HasSuffix(certPath, ".p12") || strings.HasSuffix(certPath, ".pfx") {
		data, err := os.ReadFile(certPath)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
		}
		priv, cert, err := pkcs12.Decode(data, password)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
		}
		// pkcs12.Decode devuelve un solo certificado; para el CSD basta la hoja.
		return tls.Certificate{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  priv,
			Leaf:        cert,
		}, nil
	}
	if keyPath == "" {
		// Un solo archivo puede contener cert+key en PEM.
		return tls.LoadX509KeyPair(certPath, certPath)
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	return cert, nil
}

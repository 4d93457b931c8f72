// Package pac implementa el cliente de timbrado contra el proveedor autorizado
// de certificación (PAC). Una sola llamada remota bloqueante por intento; los
// reintentos viven en la capa de cola.
package pac

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/internal/domain/entity"
	"github.com/nominacloud/nomina-api/pkg/cfdi"
	"github.com/nominacloud/nomina-api/pkg/config"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

// Asegura que Client implementa el puerto de timbrado.
var _ stamping.StampingClient = (*Client)(nil)

// Client cliente HTTP del PAC. El modo dev no toca la red: timbra simulado con
// un folio UUID local, útil para desarrollo y pruebas de integración sin saldo
// de timbres.
type Client struct {
	httpClient *http.Client
	cfg        config.PACConfig
	log        *logger.Logger
	nowFunc    func() time.Time
}

// NewClient construye el cliente con un timeout de red generoso (60 s): el PAC
// puede tardar varios segundos en validar y sellar bajo carga.
func NewClient(cfg config.PACConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cfg:        cfg,
		log:        log,
		nowFunc:    time.Now,
	}
}

// stampRequest payload de la operación de timbrado del PAC.
type stampRequest struct {
	Document string `json:"document"` // pre-CFDI sellado, en Base64
	Username string `json:"username"`
	Password string `json:"password"`
}

// stampResponse respuesta JSON del PAC.
type stampResponse struct {
	UUID          string `json:"uuid"`
	FechaTimbrado string `json:"fecha_timbrado"` // ISO-8601
	CFDI          string `json:"cfdi"`           // documento timbrado completo
	CodigoError   string `json:"codigo_error,omitempty"`
	MensajeError  string `json:"mensaje_error,omitempty"`
}

// Stamp envía el documento origen al PAC y devuelve folio, fecha y CFDI
// timbrado. Los errores conservan el mensaje crudo del PAC: el clasificador de
// la capa de aplicación decide sobre ese texto si la falla es transitoria.
func (c *Client) Stamp(ctx context.Context, sourceDocument string, creds *stamping.SigningCredentials) (*stamping.StampResult, error) {
	mode := c.cfg.Mode
	if creds != nil && creds.Mode != "" {
		mode = creds.Mode
	}
	if mode == entity.PACModeDev {
		return c.stampSimulated(sourceDocument)
	}

	baseURL := c.cfg.BaseURLTest
	if mode == entity.PACModeProd {
		baseURL = c.cfg.BaseURLProd
	}
	if baseURL == "" {
		return nil, fmt.Errorf("pac: sin URL configurada para el modo %q", mode)
	}

	payload, err := json.Marshal(stampRequest{
		Document: base64.StdEncoding.EncodeToString([]byte(sourceDocument)),
		Username: c.cfg.Username,
		Password: c.cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("pac: serializar solicitud: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/stamp", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("pac: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pac: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("pac: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		return nil, fmt.Errorf("pac: leer respuesta: %w", err)
	}

	// Los códigos HTTP viajan en el texto del error para que el clasificador los
	// reconozca (503/429 transitorios, 400/401 permanentes).
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pac: Error %d: %s", resp.StatusCode, truncate(string(rawBody), 512))
	}

	var out stampResponse
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return nil, fmt.Errorf("pac: respuesta ilegible: %s", truncate(string(rawBody), 512))
	}
	if out.CodigoError != "" || out.UUID == "" {
		return nil, fmt.Errorf("pac: %s: %s", out.CodigoError, out.MensajeError)
	}
	if err := cfdi.ValidateFolio(out.UUID); err != nil {
		// Un folio que no es UUID es una respuesta corrupta del PAC, no un timbrado.
		return nil, fmt.Errorf("pac: folio inválido en la respuesta: %w", err)
	}

	stampedAt, err := time.Parse(time.RFC3339, out.FechaTimbrado)
	if err != nil {
		// Fecha ilegible no invalida el timbrado: el folio ya existe en el SAT.
		c.log.Warn().Str("fecha_timbrado", out.FechaTimbrado).Msg("fecha de timbrado ilegible, se usa el reloj local")
		stampedAt = c.nowFunc()
	}

	return &stamping.StampResult{
		Folio:        out.UUID,
		StampedAt:    stampedAt,
		SignedResult: out.CFDI,
		PACResponse:  string(rawBody),
	}, nil
}

// stampSimulated timbrado local sin red: folio UUID generado aquí.
func (c *Client) stampSimulated(sourceDocument string) (*stamping.StampResult, error) {
	folio := uuid.New().String()
	now := c.nowFunc()
	c.log.Debug().Str("folio", folio).Msg("timbrado simulado (modo dev)")
	resp, _ := json.Marshal(stampResponse{
		UUID:          folio,
		FechaTimbrado: now.UTC().Format(time.RFC3339),
		CFDI:          sourceDocument,
	})
	return &stamping.StampResult{
		Folio:        folio,
		StampedAt:    now,
		SignedResult: sourceDocument,
		PACResponse:  string(resp),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nominacloud/nomina-api/internal/application/audit"
	"github.com/nominacloud/nomina-api/internal/application/dto"
)

// AuditHandler maneja la verificación de la bitácora encadenada (protegido).
type AuditHandler struct {
	chain *audit.Chain
}

// NewAuditHandler construye el handler.
func NewAuditHandler(chain *audit.Chain) *AuditHandler {
	return &AuditHandler{chain: chain}
}

// VerifyChain godoc
// @Summary      Verificar la integridad de la bitácora encadenada
// @Description  Recomputa los hashes del rango y reporta roturas (alteración,
//
//	eslabón roto, hueco de secuencia). No corrige nada.
//
// @Tags         audit
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.VerifyChainRequest  true  "rango [from_seq, to_seq]; ceros = desde el inicio"
// @Success      200  {object}  audit.VerifyReport
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/v1/audit/verify [post]
func (h *AuditHandler) VerifyChain(c *fiber.Ctx) error {
	var in dto.VerifyChainRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.FromSeq <= 0 {
		in.FromSeq = 1
	}
	if in.ToSeq <= 0 {
		// Sin tope explícito se verifica un rango generoso hacia adelante.
		in.ToSeq = in.FromSeq + 999_999
	}
	if in.ToSeq < in.FromSeq {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to_seq debe ser >= from_seq"})
	}
	report, err := h.chain.VerifyChain(c.Context(), in.FromSeq, in.ToSeq)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(report)
}

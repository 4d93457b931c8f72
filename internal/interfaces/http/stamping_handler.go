package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nominacloud/nomina-api/internal/application/dto"
	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/internal/domain"
)

// StampingHandler maneja las peticiones HTTP del pipeline de timbrado (protegido).
type StampingHandler struct {
	svc *stamping.Service
}

// NewStampingHandler construye el handler.
func NewStampingHandler(svc *stamping.Service) *StampingHandler {
	return &StampingHandler{svc: svc}
}

// StampDocument godoc
// @Summary      Encolar el timbrado de un CFDI
// @Tags         cfdi
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true   "ID del CFDI"
// @Param        body  body  dto.StampDocumentRequest  false  "versión del recibo y prioridad (opcional)"
// @Success      202  {object}  dto.StampAcceptedResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/v1/cfdi/{id}/stamp [post]
func (h *StampingHandler) StampDocument(c *fiber.Ctx) error {
	documentID := c.Params("id")
	var in dto.StampDocumentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	jobID, err := h.svc.EnqueueDocument(c.Context(), documentID, GetUserID(c), in.ReceiptVersion, in.Priority)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
		}
		if errors.Is(err, stamping.ErrAlreadyStamped) || errors.Is(err, domain.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.StampAcceptedResponse{JobID: jobID, DocumentID: documentID})
}

// GetDocument godoc
// @Summary      Consultar un CFDI
// @Tags         cfdi
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del CFDI"
// @Success      200  {object}  dto.CFDIResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/v1/cfdi/{id} [get]
func (h *StampingHandler) GetDocument(c *fiber.Ctx) error {
	det, err := h.svc.GetDocument(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "comprobante no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.NewCFDIResponse(det.Doc, det.Employee))
}

// GetBatch godoc
// @Summary      Consultar el avance de un lote de timbrado
// @Tags         cfdi
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del lote"
// @Success      200  {object}  dto.BatchResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/v1/batches/{id} [get]
func (h *StampingHandler) GetBatch(c *fiber.Ctx) error {
	batch, err := h.svc.GetBatch(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "lote no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.NewBatchResponse(batch))
}

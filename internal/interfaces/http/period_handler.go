package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/nominacloud/nomina-api/internal/application/dto"
	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/internal/domain"
)

// PeriodHandler maneja las peticiones HTTP de períodos de nómina (protegido).
type PeriodHandler struct {
	svc *stamping.Service
}

// NewPeriodHandler construye el handler.
func NewPeriodHandler(svc *stamping.Service) *PeriodHandler {
	return &PeriodHandler{svc: svc}
}

// StampPeriod godoc
// @Summary      Encolar el timbrado de todos los recibos pendientes del período
// @Tags         periods
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del período"
// @Success      202  {object}  dto.PeriodStampAcceptedResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/v1/periods/{id}/stamp [post]
func (h *PeriodHandler) StampPeriod(c *fiber.Ctx) error {
	periodID := c.Params("id")
	batch, enqueued, err := h.svc.EnqueuePeriod(c.Context(), periodID, GetUserID(c))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "período no encontrado"})
		}
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.PeriodStampAcceptedResponse{
		BatchID:  batch.ID,
		PeriodID: periodID,
		Enqueued: enqueued,
	})
}

// GetPeriod godoc
// @Summary      Consultar un período con su conteo de recibos sin timbrar
// @Tags         periods
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del período"
// @Success      200  {object}  dto.PeriodStatusResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/v1/periods/{id} [get]
func (h *PeriodHandler) GetPeriod(c *fiber.Ctx) error {
	st, err := h.svc.GetPeriodStatus(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "período no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.NewPeriodStatusResponse(st.Period, st.PendingItems))
}

// ListStuck godoc
// @Summary      Períodos atorados en PROCESSING por fallas permanentes
// @Description  Lista los períodos de la empresa del token cuyas líneas pendientes
//
//	están todas en STAMP_ERROR: nunca van a auto-aprobarse.
//
// @Tags         periods
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.PeriodStatusResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/v1/periods/stuck [get]
func (h *PeriodHandler) ListStuck(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	periods, err := h.svc.ListStuckPeriods(c.Context(), companyID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.PeriodStatusResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, dto.NewPeriodStatusResponse(p, 0))
	}
	return c.JSON(fiber.Map{"total": len(out), "periods": out})
}

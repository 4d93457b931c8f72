package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nominacloud/nomina-api/internal/application/audit"
	"github.com/nominacloud/nomina-api/internal/application/stamping"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	StampingSvc *stamping.Service
	AuditChain  *audit.Chain
	JWTSecret   string
}

// Router registra las rutas de la API. Todo el pipeline de timbrado es
// protegido: requiere Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api/v1", AuthMiddleware(deps.JWTSecret))

	// Encolar timbrado: solo admin y RRHH.
	canStamp := RequireRole("admin", "rrhh")

	// CFDI y lotes
	stampingHandler := NewStampingHandler(deps.StampingSvc)
	cfdi := api.Group("/cfdi")
	cfdi.Post("/:id/stamp", canStamp, stampingHandler.StampDocument)
	cfdi.Get("/:id", stampingHandler.GetDocument)
	api.Get("/batches/:id", stampingHandler.GetBatch)

	// Períodos de nómina
	periodHandler := NewPeriodHandler(deps.StampingSvc)
	periods := api.Group("/periods")
	periods.Get("/stuck", periodHandler.ListStuck)
	periods.Post("/:id/stamp", canStamp, periodHandler.StampPeriod)
	periods.Get("/:id", periodHandler.GetPeriod)

	// Bitácora encadenada: verificación reservada a admin y contador.
	auditHandler := NewAuditHandler(deps.AuditChain)
	api.Post("/audit/verify", RequireRole("admin", "contador"), auditHandler.VerifyChain)
}

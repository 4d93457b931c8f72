package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/nominacloud/nomina-api/internal/application/audit"
	"github.com/nominacloud/nomina-api/internal/application/stamping"
	"github.com/nominacloud/nomina-api/internal/infrastructure/credentials"
	"github.com/nominacloud/nomina-api/internal/infrastructure/events"
	"github.com/nominacloud/nomina-api/internal/infrastructure/pac"
	"github.com/nominacloud/nomina-api/internal/infrastructure/postgres"
	"github.com/nominacloud/nomina-api/internal/infrastructure/queue"
	httpRouter "github.com/nominacloud/nomina-api/internal/interfaces/http"
	"github.com/nominacloud/nomina-api/pkg/config"
	"github.com/nominacloud/nomina-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("pac_mode", cfg.PAC.Mode).
		Msg("iniciando aplicación")

	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	cfdiRepo := postgres.NewCFDIRepository(pool)
	lineRepo := postgres.NewPayrollLineItemRepository(pool)
	periodRepo := postgres.NewPayrollPeriodRepository(pool)
	attemptRepo := postgres.NewStampingAttemptRepository(pool)
	auditRepo := postgres.NewAuditLogRepository(pool)
	batchRepo := postgres.NewBatchRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	employeeRepo := postgres.NewEmployeeRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	auditChain := audit.NewChain(auditRepo)

	bus := events.NewBus(log)
	bus.Subscribe(stamping.EventStampingSucceeded, bus.LogSubscriber())
	bus.Subscribe(stamping.EventStampingFailed, bus.LogSubscriber())
	bus.Subscribe(stamping.EventPeriodFinalized, bus.LogSubscriber())

	// Cliente PAC — en modo "dev" timbra simulado, sin red.
	pacClient := pac.NewClient(cfg.PAC, log)
	credsProvider := credentials.NewProvider(companyRepo, cfg.PAC)

	locks := stamping.NewLockManager(cfdiRepo, attemptRepo, cfg.Queue.LockTTL, log)
	finalizer := stamping.NewPeriodFinalizer(periodRepo, lineRepo, cfdiRepo, auditChain, cfg.Audit.SystemActor, log)

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s:%s", hostname, uuid.New().String()[:8])

	orchestrator := stamping.NewOrchestrator(
		cfdiRepo, lineRepo, companyRepo, batchRepo,
		locks, pacClient, credsProvider, txRunner,
		finalizer, auditChain, bus,
		workerID, cfg.Audit.SystemActor, log,
	)

	jobQueue := queue.New(queue.Config{
		Concurrency: cfg.Queue.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
		BaseDelay:   cfg.Queue.BaseDelay,
		MaxDelay:    cfg.Queue.MaxDelay,
	}, log)
	jobQueue.Register(stamping.JobTypeStampCFDI, stamping.NewJobProcessor(orchestrator, log))
	jobQueue.Start(ctx)

	stampingSvc := stamping.NewService(cfdiRepo, periodRepo, batchRepo, employeeRepo, jobQueue, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "NominaCloud API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		StampingSvc: stampingSvc,
		AuditChain:  auditChain,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Primero dejar de aceptar peticiones nuevas, luego drenar los trabajos de
	// timbrado en curso: un intento interrumpido a mitad deja candados huérfanos.
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := jobQueue.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("la cola no drenó a tiempo, trabajos interrumpidos")
	}

	log.Info().Msg("aplicación detenida")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mercadolocal-sv/dte-engine/internal/application/auth"
	appdte "github.com/mercadolocal-sv/dte-engine/internal/application/dte"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/email"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/hacienda"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/postgres"
	"github.com/mercadolocal-sv/dte-engine/internal/infrastructure/redislock"
	httpRouter "github.com/mercadolocal-sv/dte-engine/internal/interfaces/http"
	"github.com/mercadolocal-sv/dte-engine/pkg/config"
	"github.com/mercadolocal-sv/dte-engine/pkg/logger"
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
		Str("ambiente_mh", cfg.Hacienda.Ambiente).
		Msg("iniciando motor fiscal")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	docRepo := postgres.NewDocumentRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	emitter := hacienda.EmitterConfig{
		NIT:           cfg.Hacienda.NIT,
		NRC:           cfg.Hacienda.NRC,
		Nombre:        cfg.Hacienda.Nombre,
		CodEstable:    cfg.Hacienda.CodEstable,
		CodPuntoVenta: cfg.Hacienda.CodPuntoVenta,
		Ambiente:      cfg.Hacienda.Ambiente,
	}
	builder := hacienda.NewPayloadBuilder(emitter)

	// Firmador local — sin URL configurada se transmite sin firmar (solo
	// tiene sentido contra el ambiente de pruebas del MH).
	var signer hacienda.Signer
	if cfg.Hacienda.FirmadorURL != "" {
		signer = hacienda.NewFirmadorClient(cfg.Hacienda.FirmadorURL, cfg.Hacienda.NIT, cfg.Hacienda.FirmadorPassword)
	}
	transmitter := hacienda.NewRESTClient(cfg.Hacienda.BaseURL, cfg.Hacienda.Usuario, cfg.Hacienda.Password, signer)

	// Candado de transmisión: Redis si hay REDIS_ADDR (varias réplicas),
	// memoria si no (instancia única).
	var locker appdte.DocumentLocker
	if cfg.Redis.Addr != "" {
		redisClient, err := redislock.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer redisClient.Close()
		locker = redislock.NewLocker(redisClient, log)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("candado de transmisión en Redis")
	} else {
		locker = appdte.NewMemoryLocker()
	}

	var notifier appdte.Notifier
	if cfg.Notify.ResendAPIKey != "" && len(cfg.Notify.To) > 0 {
		notifier = email.NewResendNotifier(cfg.Notify.ResendAPIKey, cfg.Notify.From, cfg.Notify.To, log)
	}

	orchestrator := appdte.NewOrchestrator(
		txRunner, docRepo, saleRepo, transmitter, builder, locker, notifier, emitter, log,
	)
	coordinator := appdte.NewContingencyCoordinator(txRunner, docRepo, orchestrator, log)

	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 120, // Submit espera la transmisión completa
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "DTE Engine API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orchestrator: orchestrator,
		Contingency:  coordinator,
		AuthUC:       authUC,
		JWTSecret:    cfg.JWT.Secret,
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

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("motor fiscal detenido")
}
